package service

import (
	"context"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/ranking"
)

// SearchService runs query sessions against a storage adapter. Every call
// works on its own session graph, so one service may serve concurrent calls
// when the adapter allows it. Sessions never write to storage.
type SearchService struct {
	storage domain.Storage
	opts    Options
	log     *logrus.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(storage domain.Storage, opts Options, log *logrus.Logger) *SearchService {
	return &SearchService{storage: storage, opts: opts, log: log}
}

// Search extracts the subgraph around the request seeds, ranks it by
// spreading activation and, if asked, clusters it.
func (s *SearchService) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	sess, err := openSession(ctx, s.storage, s.opts, req.Weighting, req.Seeds, s.log)
	if err != nil {
		return nil, err
	}

	rank, err := sess.rank(s.opts.Rank)
	if err != nil {
		return nil, err
	}

	res := &models.SearchResult{
		Ranks:        make(map[int64]float64, len(rank.Ranks)),
		SkippedSeeds: sess.skipped,
		Stats:        sess.stats(rank),
	}

	for h, r := range rank.Ranks {
		res.Ranks[sess.g.Vertex(h).ID] = r
	}

	if req.WantsClusters() {
		c, err := sess.cluster(s.opts, req.NumClusters, req.Threshold, "", s.opts.Subgraph.Progress)
		if err != nil {
			return nil, err
		}

		res.NumClusters = c.count
		res.Clusters = make(map[int64]int, len(c.ids))

		for h, id := range c.ids {
			res.Clusters[sess.g.Vertex(h).ID] = id
		}

		overall := c.silhouette.Overall
		res.Silhouette = &overall
	}

	res.Hits = sess.hits(rank.Ranks, req.DocumentsOnly, req.Limit)

	s.log.WithFields(logrus.Fields{
		"hits":       len(res.Hits),
		"iterations": rank.Iterations,
		"converged":  rank.Converged,
		"clusters":   res.NumClusters,
	}).Debug("search.done")

	return res, nil
}

// Cluster extracts the subgraph around the request seeds and groups its
// vertices. Members of each cluster are ordered by rank.
func (s *SearchService) Cluster(ctx context.Context, req models.ClusterRequest) (*models.ClusterResult, error) {
	if req.NumClusters <= 0 && req.Threshold == nil {
		return nil, models.InvalidConfigf("clustering needs num_clusters or a threshold")
	}

	if _, err := LinkageByName(req.Linkage); err != nil {
		return nil, err
	}

	sess, err := openSession(ctx, s.storage, s.opts, req.Weighting, req.Seeds, s.log)
	if err != nil {
		return nil, err
	}

	rank, err := sess.rank(s.opts.Rank)
	if err != nil {
		return nil, err
	}

	c, err := sess.cluster(s.opts, req.NumClusters, req.Threshold, req.Linkage, s.opts.Subgraph.Progress)
	if err != nil {
		return nil, err
	}

	res := &models.ClusterResult{
		Clusters:     make([]models.Cluster, c.count),
		Silhouette:   c.silhouette.Overall,
		SkippedSeeds: sess.skipped,
		Stats:        sess.stats(rank),
	}

	for i := range res.Clusters {
		res.Clusters[i] = models.Cluster{ID: i, Silhouette: c.silhouette.PerCluster[i]}
	}

	for _, h := range ranking.Ordered(rank.Ranks) {
		id, ok := c.ids[h]
		if !ok {
			continue
		}

		res.Clusters[id].Members = append(res.Clusters[id].Members, sess.hit(h, rank.Ranks[h]))
	}

	s.log.WithFields(logrus.Fields{
		"clusters":   c.count,
		"silhouette": c.silhouette.Overall,
	}).Debug("search.cluster")

	return res, nil
}

// hits returns presentation hits ordered by descending rank.
func (s *session) hits(ranks map[graph.VertexHandle]float64, documentsOnly bool, limit int) []models.Hit {
	out := make([]models.Hit, 0, len(ranks))

	for _, h := range ranking.Ordered(ranks) {
		if documentsOnly && s.g.Vertex(h).Type != models.DocumentType {
			continue
		}

		out = append(out, s.hit(h, ranks[h]))

		if limit > 0 && len(out) == limit {
			break
		}
	}

	return slices.Clip(out)
}

func (s *session) stats(r *ranking.Result) models.SessionStats {
	return models.SessionStats{
		Vertices:       s.g.VertexCount(),
		Edges:          s.g.EdgeCount(),
		RankIterations: r.Iterations,
		RankConverged:  r.Converged,
	}
}
