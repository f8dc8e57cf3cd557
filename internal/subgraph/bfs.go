package subgraph

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// BFS expands exactly Depth hops from the seeds. Each hop bulk-fetches the
// neighbor lists of the frontier, adds every returned vertex and edge, and
// moves on to the newly discovered vertices that were not fetched yet.
type BFS struct {
	Depth    int
	Progress models.ProgressFunc

	log   *logrus.Logger
	cache neighborCache
}

var _ Strategy = (*BFS)(nil)

// Name implements Strategy.
func (b *BFS) Name() string { return NameBFS }

// Extend implements Strategy. The weighting scheme is not consulted.
func (b *BFS) Extend(ctx context.Context, g *graph.Graph, seeds []int64, _ weighting.Scheme) error {
	frontier := pendingSeeds(g, seeds)
	if len(frontier) == 0 {
		return nil
	}

	if _, err := materializeSeeds(ctx, g, frontier); err != nil {
		return err
	}

	hops := 0

	for ; hops < b.Depth && len(frontier) > 0; hops++ {
		lists, err := b.cache.get(ctx, g, frontier)
		if err != nil {
			return err
		}

		queued := make(map[int64]struct{})
		next := make([]int64, 0)

		for _, id := range frontier {
			src, ok := g.VertexByID(id)
			if !ok {
				return fmt.Errorf("frontier vertex %d: %w", id, models.ErrNotFound)
			}

			g.MarkFetched(id)

			for _, n := range lists[id] {
				if _, err := link(ctx, g, src, n); err != nil {
					return err
				}

				nid := n.Vertex.ID
				if _, dup := queued[nid]; dup || g.Fetched(nid) {
					continue
				}

				queued[nid] = struct{}{}
				next = append(next, nid)
			}
		}

		slices.Sort(next)
		frontier = next

		report(b.Progress, "extend.bfs", hops+1, b.Depth)
	}

	b.logger().WithFields(logrus.Fields{
		"seeds":    len(seeds),
		"hops":     hops,
		"vertices": g.VertexCount(),
		"edges":    g.EdgeCount(),
	}).Debug("subgraph.bfs")

	return nil
}

func (b *BFS) logger() *logrus.Logger {
	if b.log == nil {
		return logrus.StandardLogger()
	}

	return b.log
}
