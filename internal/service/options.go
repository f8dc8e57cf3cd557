// Package service orchestrates engine sessions: search and clustering over
// an extracted subgraph, and indexing of documents into a collection.
package service

import (
	"math/rand/v2"

	"github.com/persistorai/corpusgraph/internal/cluster"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/ranking"
	"github.com/persistorai/corpusgraph/internal/subgraph"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// Separation strategy names.
const (
	SeparationBFS  = "bfs"
	SeparationWalk = "walk"
)

// Options configures the engine of search and clustering sessions.
type Options struct {
	Subgraph subgraph.Options

	// Weighting is the default scheme name; a request may override it.
	Weighting string

	Rank ranking.Options

	// SeparationPasses re-weights the subgraph before clustering.
	SeparationPasses   int
	SeparationStrategy string
	SeparationDepth    int
	SimilarityWalks    int
	SimilarityDecay    float64

	// Linkage is the default agglomerative combinator; empty cuts the plain
	// spanning-tree dendrogram.
	Linkage string
}

// DefaultOptions returns a bfs extraction with composed weighting and no
// separation passes.
func DefaultOptions() Options {
	return Options{
		Subgraph:           subgraph.DefaultOptions(),
		Weighting:          weighting.NameComposed,
		SeparationStrategy: SeparationBFS,
		SeparationDepth:    2,
		SimilarityWalks:    200,
		SimilarityDecay:    1,
	}
}

// Validate checks every engine parameter before any traversal starts.
func (o Options) Validate() error {
	if err := o.Subgraph.Validate(); err != nil {
		return err
	}

	if err := o.Rank.Validate(); err != nil {
		return err
	}

	if o.SeparationPasses < 0 {
		return models.InvalidConfigf("separation passes must not be negative, got %d", o.SeparationPasses)
	}

	if _, err := LinkageByName(o.Linkage); err != nil {
		return err
	}

	s, err := o.similarity(rand.New(rand.NewPCG(1, 1))) //nolint:gosec // validation only.
	if err != nil {
		return err
	}

	if v, ok := s.(interface{ Validate() error }); ok {
		return v.Validate()
	}

	return nil
}

// similarity builds the separation strategy, drawing walks from r.
func (o Options) similarity(r *rand.Rand) (cluster.SimilarityStrategy, error) {
	switch o.SeparationStrategy {
	case "", SeparationBFS:
		return cluster.BFSSimilarity{MaxDepth: o.SeparationDepth, Decay: o.SimilarityDecay}, nil
	case SeparationWalk:
		return cluster.WalkSimilarity{
			MaxDepth: o.SeparationDepth,
			Walks:    o.SimilarityWalks,
			Decay:    o.SimilarityDecay,
			Rand:     r,
		}, nil
	default:
		return nil, models.InvalidConfigf("unknown separation strategy %q", o.SeparationStrategy)
	}
}

// LinkageByName returns the combinator for single, complete or average
// linkage. The empty name returns nil, which selects the plain spanning-tree
// dendrogram.
func LinkageByName(name string) (cluster.Combinator, error) {
	switch name {
	case "":
		return nil, nil
	case "single":
		return cluster.SingleLinkage, nil
	case "complete":
		return cluster.CompleteLinkage, nil
	case "average":
		return cluster.AverageLinkage, nil
	default:
		return nil, models.InvalidConfigf("unknown linkage %q", name)
	}
}
