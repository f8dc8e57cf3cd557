package subgraph

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// RandomWalk samples Trials walks of up to Depth hops from every seed.
// Walks are tracked as run counts: each frontier vertex carries the number
// of walks passing through it, and every walk picks its next neighbor with
// probability proportional to the edge weight. Traversed edges are
// materialized and their energy hits incremented. After the final hop,
// edges between resident vertices found in the neighbor cache are added too.
//
// With KeepFraction below 1 this is the pruned random walk: candidates are
// restricted to the smallest weight-descending prefix whose normalized
// weight reaches KeepFraction.
type RandomWalk struct {
	Depth        int
	Trials       int
	KeepFraction float64
	Rand         *rand.Rand
	Progress     models.ProgressFunc

	log   *logrus.Logger
	cache neighborCache
}

var _ Strategy = (*RandomWalk)(nil)

// Name implements Strategy.
func (w *RandomWalk) Name() string {
	if w.KeepFraction < 1 {
		return NamePruned
	}

	return NameRandomWalk
}

type candidate struct {
	n      models.Neighbor
	weight float64
}

// Extend implements Strategy.
func (w *RandomWalk) Extend(ctx context.Context, g *graph.Graph, seeds []int64, scheme weighting.Scheme) error {
	if w.Rand == nil {
		return models.InvalidConfigf("random walk needs a random source")
	}

	if !(w.KeepFraction > 0 && w.KeepFraction <= 1) {
		return models.InvalidConfigf("keep fraction must be in (0, 1], got %v", w.KeepFraction)
	}

	pending := pendingSeeds(g, seeds)
	if len(pending) == 0 {
		return nil
	}

	if _, err := materializeSeeds(ctx, g, pending); err != nil {
		return err
	}

	runs := make(map[int64]int, len(pending))
	for _, id := range pending {
		runs[id] = w.Trials
	}

	walked := make(map[int64]struct{})
	steps, hops := 0, 0

	for ; hops < w.Depth && len(runs) > 0; hops++ {
		frontier := slices.Sorted(maps.Keys(runs))

		lists, err := w.cache.get(ctx, g, frontier)
		if err != nil {
			return err
		}

		next := make(map[int64]int)

		for _, id := range frontier {
			g.MarkFetched(id)
			walked[id] = struct{}{}

			cands, total, err := w.candidates(ctx, lists[id], scheme)
			if err != nil {
				return err
			}

			// A vertex without outgoing weight ends its walks here.
			if total <= 0 {
				continue
			}

			src, ok := g.VertexByID(id)
			if !ok {
				return fmt.Errorf("walk vertex %d: %w", id, models.ErrNotFound)
			}

			for range runs[id] {
				c := cands[pick(w.Rand, cands, total)]

				eh, err := link(ctx, g, src, c.n)
				if err != nil {
					return err
				}

				g.Hit(eh)
				next[c.n.Vertex.ID]++
				steps++
			}
		}

		runs = next

		report(w.Progress, "extend."+w.Name(), hops+1, w.Depth)
	}

	metrics.WalkSteps.Add(float64(steps))

	closed, err := w.closeTriangles(ctx, g, walked)
	if err != nil {
		return err
	}

	w.logger().WithFields(logrus.Fields{
		"seeds":    len(seeds),
		"hops":     hops,
		"steps":    steps,
		"closed":   closed,
		"vertices": g.VertexCount(),
		"edges":    g.EdgeCount(),
	}).Debug("subgraph.walk")

	return nil
}

// candidates weighs a neighbor list and, when pruning, keeps only the
// dominant prefix. Kept candidates stay in list order, so a keep fraction of
// 1 yields exactly the unpruned candidates and draws.
func (w *RandomWalk) candidates(ctx context.Context, list []models.Neighbor, scheme weighting.Scheme) ([]candidate, float64, error) {
	cands := make([]candidate, 0, len(list))
	total := 0.0

	for _, n := range list {
		wt, err := scheme.Weight(ctx, weighting.NeighborView(n))
		if err != nil {
			return nil, 0, err
		}

		if !(wt > 0) {
			continue
		}

		cands = append(cands, candidate{n: n, weight: wt})
		total += wt
	}

	if w.KeepFraction >= 1 || total <= 0 {
		return cands, total, nil
	}

	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(cands[b].weight, cands[a].weight)
	})

	keep := make([]bool, len(cands))
	kept := 0.0

	for _, i := range order {
		keep[i] = true
		kept += cands[i].weight

		if kept/total >= w.KeepFraction {
			break
		}
	}

	pruned := cands[:0:0]
	for i, c := range cands {
		if keep[i] {
			pruned = append(pruned, c)
		}
	}

	return pruned, kept, nil
}

// pick draws a candidate index by cumulative weight.
func pick(r *rand.Rand, cands []candidate, total float64) int {
	u := r.Float64() * total
	cum := 0.0

	for i, c := range cands {
		cum += c.weight
		if u < cum {
			return i
		}
	}

	return len(cands) - 1
}

// closeTriangles adds the cached edges of walked vertices whose targets are
// resident, without further traversal.
func (w *RandomWalk) closeTriangles(ctx context.Context, g *graph.Graph, walked map[int64]struct{}) (int, error) {
	added := 0

	for _, id := range slices.Sorted(maps.Keys(walked)) {
		list, ok := w.cache.cached(g, id)
		if !ok {
			continue
		}

		src, ok := g.VertexByID(id)
		if !ok {
			continue
		}

		for _, n := range list {
			dst, ok := g.VertexByID(n.Vertex.ID)
			if !ok {
				continue
			}

			if _, exists := g.EdgeBetween(src, dst); exists {
				continue
			}

			if _, err := g.AddEdge(ctx, src, dst, n.Edge); err != nil {
				return added, err
			}

			added++
		}
	}

	return added, nil
}

func (w *RandomWalk) logger() *logrus.Logger {
	if w.log == nil {
		return logrus.StandardLogger()
	}

	return w.log
}
