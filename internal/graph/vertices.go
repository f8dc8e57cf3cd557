package graph

import (
	"context"
	"fmt"
	"maps"

	"github.com/persistorai/corpusgraph/internal/models"
)

// AddVertex adds a vertex or returns the resident one with the same id or
// the same (content, type) identity. A new vertex takes its id from the
// observer (storage-assigned), then from props.ID, then from insertion order.
func (g *Graph) AddVertex(ctx context.Context, props models.VertexProperties) (VertexHandle, error) {
	if props.ID != 0 {
		if h, ok := g.byID[props.ID]; ok {
			return h, nil
		}
	}

	key := identityKey{content: props.Content, typ: props.Type}
	if h, ok := g.identity[key]; ok {
		return h, nil
	}

	p := props
	p.Meta = maps.Clone(props.Meta)

	if err := g.observer.WillAddVertex(ctx, &p); err != nil {
		return NoVertex, fmt.Errorf("adding vertex %q: %w", props.Content, err)
	}

	// The observer may resolve the identity to a vertex that is already resident.
	if h, ok := g.byID[p.ID]; ok && p.ID != 0 {
		g.identity[key] = h
		return h, nil
	}

	if p.ID == 0 {
		p.ID = g.allocID()
	}

	h := VertexHandle(len(g.vertices))
	g.vertices = append(g.vertices, &Vertex{
		VertexProperties: p,
		ClusterID:        -1,
		handle:           h,
		alive:            true,
	})
	g.byID[p.ID] = h
	g.identity[key] = h
	g.liveVertices++

	if p.ID >= g.nextID {
		g.nextID = p.ID + 1
	}

	if err := g.observer.DidAddVertex(ctx, p); err != nil {
		return h, fmt.Errorf("added vertex %q: %w", props.Content, err)
	}

	return h, nil
}

// allocID derives an id from insertion order. With a storage adapter attached
// the derived ids are negative so they never collide with storage ids of
// vertices that are not resident yet.
func (g *Graph) allocID() int64 {
	if g.storage != nil {
		g.localID--
		return g.localID
	}

	for {
		id := g.nextID
		g.nextID++

		if _, taken := g.byID[id]; !taken {
			return id
		}
	}
}

// Lookup resolves (content, type) to a resident vertex, fetching it from the
// storage adapter when it is not cached. It fails with models.ErrNotFound
// when the vertex is absent from both.
func (g *Graph) Lookup(ctx context.Context, content string, typ models.VertexType) (VertexHandle, error) {
	if h, ok := g.Cached(content, typ); ok {
		return h, nil
	}

	if g.storage == nil {
		return NoVertex, fmt.Errorf("looking up %s %q: %w", typ, content, models.ErrNotFound)
	}

	id, err := g.storage.Resolve(ctx, content, typ)
	if err != nil {
		return NoVertex, fmt.Errorf("looking up %s %q: %w", typ, content, err)
	}

	return g.Fetch(ctx, id)
}

// Fetch returns the resident vertex with the given id, materializing it from
// the storage adapter if needed.
func (g *Graph) Fetch(ctx context.Context, id int64) (VertexHandle, error) {
	handles, err := g.Materialize(ctx, []int64{id})
	if err != nil {
		return NoVertex, err
	}

	h, ok := handles[id]
	if !ok {
		return NoVertex, fmt.Errorf("vertex %d: %w", id, models.ErrNotFound)
	}

	return h, nil
}

// Materialize makes every listed vertex resident, bulk-fetching the missing
// ones from storage. Ids unknown to storage are absent from the result.
func (g *Graph) Materialize(ctx context.Context, ids []int64) (map[int64]VertexHandle, error) {
	out := make(map[int64]VertexHandle, len(ids))
	missing := make([]int64, 0, len(ids))

	for _, id := range ids {
		if h, ok := g.byID[id]; ok {
			out[id] = h
			continue
		}

		missing = append(missing, id)
	}

	if len(missing) == 0 || g.storage == nil {
		return out, nil
	}

	props, err := g.storage.FetchProperties(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("fetching %d vertices: %w", len(missing), err)
	}

	for _, p := range props {
		h, err := g.AddVertex(ctx, p)
		if err != nil {
			return nil, err
		}

		out[p.ID] = h
	}

	return out, nil
}

// ClearVertex drops every edge incident to h but keeps the vertex.
func (g *Graph) ClearVertex(ctx context.Context, h VertexHandle) error {
	v, err := g.vertexOrNotFound(h)
	if err != nil {
		return err
	}

	if err := g.observer.WillClearVertex(ctx, v.ID); err != nil {
		return fmt.Errorf("clearing vertex %d: %w", v.ID, err)
	}

	for len(v.out) > 0 {
		g.unlinkEdge(g.edges[v.out[len(v.out)-1]])
	}

	for len(v.in) > 0 {
		g.unlinkEdge(g.edges[v.in[len(v.in)-1]])
	}

	if err := g.observer.DidClearVertex(ctx, v.ID); err != nil {
		return fmt.Errorf("cleared vertex %d: %w", v.ID, err)
	}

	return nil
}

// RemoveVertex clears all incident edges of h and then removes it.
func (g *Graph) RemoveVertex(ctx context.Context, h VertexHandle) error {
	v, err := g.vertexOrNotFound(h)
	if err != nil {
		return err
	}

	if err := g.observer.WillRemoveVertex(ctx, v.ID); err != nil {
		return fmt.Errorf("removing vertex %d: %w", v.ID, err)
	}

	if err := g.ClearVertex(ctx, h); err != nil {
		return err
	}

	v.alive = false
	delete(g.byID, v.ID)
	delete(g.identity, identityKey{content: v.Content, typ: v.Type})
	delete(g.fetched, v.ID)
	g.liveVertices--

	if err := g.observer.DidRemoveVertex(ctx, v.ID); err != nil {
		return fmt.Errorf("removed vertex %d: %w", v.ID, err)
	}

	return nil
}
