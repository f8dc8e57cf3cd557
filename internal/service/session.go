package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/cluster"
	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/ranking"
	"github.com/persistorai/corpusgraph/internal/subgraph"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// session is one extracted and weighted subgraph.
type session struct {
	g       *graph.Graph
	seeds   map[graph.VertexHandle]float64
	skipped []int64
	weights weighting.Weights
}

// stage starts timing a pipeline stage; call the result when it ends.
func stage(name string) func() {
	start := time.Now()

	return func() {
		metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// openSession validates the configuration, resolves the seeds, extracts the
// subgraph around them and weighs its edges. Seeds missing from storage are
// logged and skipped; a session without any resolved seed fails with
// models.ErrNoSeeds.
func openSession(
	ctx context.Context, storage domain.Storage, opts Options, schemeName string, seeds []models.Seed, log *logrus.Logger,
) (*session, error) {
	if schemeName == "" {
		schemeName = opts.Weighting
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	for _, seed := range seeds {
		if seed.Energy < 0 || math.IsNaN(seed.Energy) || math.IsInf(seed.Energy, 0) {
			return nil, models.InvalidConfigf("seed %d energy must be finite and non-negative, got %v", seed.ID, seed.Energy)
		}
	}

	strategy, err := subgraph.New(opts.Subgraph, log)
	if err != nil {
		return nil, err
	}

	g := graph.New(graph.WithStorage(storage), graph.WithLogger(log))

	scheme, err := weighting.ByName(schemeName, g)
	if err != nil {
		return nil, err
	}

	s := &session{g: g, seeds: make(map[graph.VertexHandle]float64, len(seeds))}
	ids := make([]int64, 0, len(seeds))

	for _, seed := range seeds {
		h, err := g.Fetch(ctx, seed.ID)
		if errors.Is(err, models.ErrNotFound) {
			log.WithField("seed", seed.ID).Warn("seed not found, skipping")
			s.skipped = append(s.skipped, seed.ID)

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("resolving seed %d: %w", seed.ID, err)
		}

		energy := seed.Energy
		if energy == 0 {
			energy = ranking.DefaultSeedEnergy
		}

		s.seeds[h] += energy
		ids = append(ids, seed.ID)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%d seeds requested: %w", len(seeds), models.ErrNoSeeds)
	}

	done := stage("extend")
	err = strategy.Extend(ctx, g, ids, scheme)
	done()

	if err != nil {
		return nil, fmt.Errorf("extending subgraph with %s: %w", strategy.Name(), err)
	}

	done = stage("weigh")
	s.weights, err = weighting.EdgeWeights(ctx, g, scheme)
	done()

	if err != nil {
		return nil, err
	}

	metrics.SessionVertices.Set(float64(g.VertexCount()))
	metrics.SessionEdges.Set(float64(g.EdgeCount()))

	log.WithFields(logrus.Fields{
		"strategy":  strategy.Name(),
		"weighting": scheme.Name(),
		"seeds":     len(ids),
		"skipped":   len(s.skipped),
		"vertices":  g.VertexCount(),
		"edges":     g.EdgeCount(),
	}).Debug("session.open")

	return s, nil
}

// rank runs spreading activation from the session seeds.
func (s *session) rank(opts ranking.Options) (*ranking.Result, error) {
	defer stage("rank")()

	return ranking.Spread(s.g, s.weights, s.seeds, opts)
}

// clustering is a cluster assignment of the session's resident vertices.
type clustering struct {
	count      int
	ids        map[graph.VertexHandle]int
	silhouette *cluster.SilhouetteResult
}

// cluster assigns every resident vertex a cluster: weak components at or
// above threshold when it is set, otherwise a cut of the spanning-tree
// dendrogram at k clusters. The edge weights are first re-weighted by
// opts.SeparationPasses separation passes.
func (s *session) cluster(opts Options, k int, threshold *float64, linkage string, progress models.ProgressFunc) (*clustering, error) {
	defer stage("cluster")()

	if threshold == nil && k <= 0 {
		return nil, models.InvalidConfigf("clustering needs a cluster count or a threshold")
	}

	if linkage == "" {
		linkage = opts.Linkage
	}

	comb, err := LinkageByName(linkage)
	if err != nil {
		return nil, err
	}

	w := s.weights

	if opts.SeparationPasses > 0 {
		strategy, err := opts.similarity(subgraph.NewRand(opts.Subgraph.Seed))
		if err != nil {
			return nil, err
		}

		w, err = cluster.Separate(s.g, w, strategy, opts.SeparationPasses, progress)
		if err != nil {
			return nil, err
		}
	}

	c := &clustering{}

	switch {
	case threshold != nil:
		c.count, c.ids = cluster.WeakComponents(s.g, w, *threshold)
	default:
		tree := cluster.SpanningTree(s.g, w, cluster.Maximum)

		var d *cluster.Dendrogram
		if comb == nil {
			d = cluster.FromSpanningTree(s.g, tree)
		} else {
			d = cluster.DendrogramFromSimilarityMST(s.g.Vertices(), tree, comb)
		}

		d.SetNumClusters(k)
		c.count, c.ids = d.NumClusters(), d.Clusters()
	}

	s.g.AssignClusters(c.ids)
	c.silhouette = cluster.Silhouette(cluster.ShortestPaths(s.g, weighting.Inverse(w), progress), c.ids, progress)

	return c, nil
}

// hit renders a resident vertex for presentation.
func (s *session) hit(h graph.VertexHandle, rank float64) models.Hit {
	v := s.g.Vertex(h)

	hit := models.Hit{
		ID:        v.ID,
		Type:      v.Type,
		Content:   v.Content,
		Rank:      rank,
		Relevance: ranking.Relevance(rank),
	}

	if v.ClusterID >= 0 {
		id := v.ClusterID
		hit.Cluster = &id
	}

	return hit
}
