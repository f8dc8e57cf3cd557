// Package subgraph materializes the query-relevant part of a stored corpus
// graph into a session graph, starting from seed vertices.
//
// Every strategy is idempotent with respect to seeds whose neighbor lists
// were already fetched in the current graph generation, and every strategy
// treats an empty seed set as a no-op.
package subgraph

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// Strategy names accepted by New.
const (
	NameNone       = "none"
	NameBFS        = "bfs"
	NameRandomWalk = "randomwalk"
	NamePruned     = "pruned"
)

// Strategy extends a session graph from seed vertex ids.
type Strategy interface {
	Name() string
	Extend(ctx context.Context, g *graph.Graph, seeds []int64, scheme weighting.Scheme) error
}

// Options configures a strategy.
type Options struct {
	// Strategy is one of none, bfs, randomwalk or pruned.
	Strategy string

	// Depth is the number of hops to expand or walk.
	Depth int

	// Trials is the number of walks started from each seed.
	Trials int

	// KeepFraction is the share of a vertex's normalized outgoing weight the
	// pruned walk keeps candidates for. Must be in (0, 1].
	KeepFraction float64

	// Seed seeds the random source of walks; zero means wall-clock time.
	Seed uint64

	Progress models.ProgressFunc
}

// DefaultOptions returns options for a two-hop breadth-first expansion.
func DefaultOptions() Options {
	return Options{
		Strategy:     NameBFS,
		Depth:        2,
		Trials:       100,
		KeepFraction: 1,
	}
}

// Validate rejects parameters that would corrupt a traversal midway.
func (o Options) Validate() error {
	switch o.Strategy {
	case NameNone, NameBFS, NameRandomWalk, NamePruned:
	default:
		return models.InvalidConfigf("unknown subgraph strategy %q", o.Strategy)
	}

	if o.Depth < 0 {
		return models.InvalidConfigf("depth must not be negative, got %d", o.Depth)
	}

	if o.Trials < 0 {
		return models.InvalidConfigf("trials must not be negative, got %d", o.Trials)
	}

	if !(o.KeepFraction > 0 && o.KeepFraction <= 1) {
		return models.InvalidConfigf("keep fraction must be in (0, 1], got %v", o.KeepFraction)
	}

	return nil
}

// NewRand returns the PCG source walks draw from, seeded with seed or, if
// seed is zero, with the wall clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // time is positive.
	}

	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // sampling, not crypto.
}

// New validates opts and builds the named strategy.
func New(opts Options, log *logrus.Logger) (Strategy, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	switch opts.Strategy {
	case NameNone:
		return None{}, nil
	case NameBFS:
		return &BFS{Depth: opts.Depth, Progress: opts.Progress, log: log}, nil
	case NameRandomWalk:
		return &RandomWalk{
			Depth: opts.Depth, Trials: opts.Trials, KeepFraction: 1,
			Rand: NewRand(opts.Seed), Progress: opts.Progress, log: log,
		}, nil
	default:
		return &RandomWalk{
			Depth: opts.Depth, Trials: opts.Trials, KeepFraction: opts.KeepFraction,
			Rand: NewRand(opts.Seed), Progress: opts.Progress, log: log,
		}, nil
	}
}

// None leaves the graph untouched. Use it when the whole graph is resident.
type None struct{}

var _ Strategy = None{}

// Name implements Strategy.
func (None) Name() string { return NameNone }

// Extend implements Strategy.
func (None) Extend(context.Context, *graph.Graph, []int64, weighting.Scheme) error { return nil }

// pendingSeeds returns the distinct seeds whose neighbor lists have not been
// fetched yet, in first-seen order.
func pendingSeeds(g *graph.Graph, seeds []int64) []int64 {
	seen := make(map[int64]struct{}, len(seeds))
	out := make([]int64, 0, len(seeds))

	for _, id := range seeds {
		if _, dup := seen[id]; dup || g.Fetched(id) {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

func report(p models.ProgressFunc, stage string, done, total int) {
	if p != nil {
		p(stage, done, total)
	}
}
