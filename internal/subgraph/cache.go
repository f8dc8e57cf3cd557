package subgraph

import (
	"context"
	"fmt"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
)

// neighborCache keeps the neighbor lists fetched for one graph generation.
type neighborCache struct {
	g          *graph.Graph
	generation uint64
	lists      map[int64][]models.Neighbor
}

func (c *neighborCache) sync(g *graph.Graph) {
	if c.g == g && c.generation == g.Generation() && c.lists != nil {
		return
	}

	c.g = g
	c.generation = g.Generation()
	c.lists = make(map[int64][]models.Neighbor)
}

// get returns the neighbor lists of ids, bulk-fetching uncached ones. Without
// a storage adapter the lists are read from the resident graph.
func (c *neighborCache) get(ctx context.Context, g *graph.Graph, ids []int64) (map[int64][]models.Neighbor, error) {
	c.sync(g)

	missing := make([]int64, 0, len(ids))

	for _, id := range ids {
		if _, ok := c.lists[id]; !ok {
			missing = append(missing, id)
		}
	}

	metrics.NeighborFetches.WithLabelValues("hit").Add(float64(len(ids) - len(missing)))

	if len(missing) > 0 {
		metrics.NeighborFetches.WithLabelValues("miss").Add(float64(len(missing)))

		fetched, err := c.fetch(ctx, g, missing)
		if err != nil {
			return nil, err
		}

		for _, id := range missing {
			c.lists[id] = fetched[id]
		}
	}

	out := make(map[int64][]models.Neighbor, len(ids))
	for _, id := range ids {
		out[id] = c.lists[id]
	}

	return out, nil
}

// cached returns the list of id if it was fetched in this generation.
func (c *neighborCache) cached(g *graph.Graph, id int64) ([]models.Neighbor, bool) {
	c.sync(g)

	list, ok := c.lists[id]

	return list, ok
}

func (c *neighborCache) fetch(ctx context.Context, g *graph.Graph, ids []int64) (map[int64][]models.Neighbor, error) {
	if s := g.Storage(); s != nil {
		lists, err := s.FetchNeighbors(ctx, ids)
		if err != nil {
			metrics.StorageErrorsTotal.WithLabelValues("fetch_neighbors").Inc()
			return nil, fmt.Errorf("fetching neighbors of %d vertices: %w", len(ids), err)
		}

		return lists, nil
	}

	out := make(map[int64][]models.Neighbor, len(ids))

	for _, id := range ids {
		h, ok := g.VertexByID(id)
		if !ok {
			continue
		}

		edges := g.OutEdges(h)
		list := make([]models.Neighbor, 0, len(edges))

		for _, eh := range edges {
			e := g.Edge(eh)
			list = append(list, models.Neighbor{Edge: e.EdgeProperties, Vertex: g.Vertex(e.To).VertexProperties})
		}

		out[id] = list
	}

	return out, nil
}

// materializeSeeds makes every seed resident and fails with ErrNotFound for
// the first seed storage does not know.
func materializeSeeds(ctx context.Context, g *graph.Graph, seeds []int64) (map[int64]graph.VertexHandle, error) {
	before := g.VertexCount()

	handles, err := g.Materialize(ctx, seeds)
	if err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("fetch_properties").Inc()
		return nil, err
	}

	metrics.VerticesFetched.Add(float64(g.VertexCount() - before))

	for _, id := range seeds {
		if _, ok := handles[id]; !ok {
			return nil, fmt.Errorf("seed %d: %w", id, models.ErrNotFound)
		}
	}

	return handles, nil
}

// link makes the neighbor vertex resident and adds the edge src -> neighbor
// unless it is resident already.
func link(ctx context.Context, g *graph.Graph, src graph.VertexHandle, n models.Neighbor) (graph.EdgeHandle, error) {
	_, resident := g.VertexByID(n.Vertex.ID)

	dst, err := g.AddVertex(ctx, n.Vertex)
	if err != nil {
		return graph.NoEdge, err
	}

	if !resident {
		metrics.VerticesFetched.Inc()
	}

	eh, err := g.MergeEdge(ctx, src, dst, n.Edge)
	if err != nil {
		return graph.NoEdge, err
	}

	return eh, nil
}
