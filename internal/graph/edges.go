package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/persistorai/corpusgraph/internal/models"
)

// AddEdge adds the edge from -> to with the given properties. If the edge
// already exists its properties are replaced; parallel edges are never created.
func (g *Graph) AddEdge(ctx context.Context, from, to VertexHandle, props models.EdgeProperties) (EdgeHandle, error) {
	return g.putEdge(ctx, from, to, func(_ models.EdgeProperties, _ bool) models.EdgeProperties {
		return props
	})
}

// StrengthenEdge adds delta to the strength of from -> to, creating the edge
// with strength delta if it does not exist yet.
func (g *Graph) StrengthenEdge(ctx context.Context, from, to VertexHandle, delta float64) (EdgeHandle, error) {
	return g.putEdge(ctx, from, to, func(cur models.EdgeProperties, exists bool) models.EdgeProperties {
		if !exists {
			return models.EdgeProperties{Strength: delta}
		}

		cur.Strength += delta

		return cur
	})
}

// MergeEdge adds the edge from -> to with the given properties unless it is
// already resident, in which case the resident edge is kept as is.
func (g *Graph) MergeEdge(ctx context.Context, from, to VertexHandle, props models.EdgeProperties) (EdgeHandle, error) {
	if h, ok := g.EdgeBetween(from, to); ok {
		return h, nil
	}

	return g.AddEdge(ctx, from, to, props)
}

func (g *Graph) putEdge(
	ctx context.Context,
	from, to VertexHandle,
	next func(cur models.EdgeProperties, exists bool) models.EdgeProperties,
) (EdgeHandle, error) {
	src, err := g.vertexOrNotFound(from)
	if err != nil {
		return NoEdge, err
	}

	dst, err := g.vertexOrNotFound(to)
	if err != nil {
		return NoEdge, err
	}

	h, exists := g.pairs[pairKey{from: from, to: to}]

	var cur models.EdgeProperties
	if exists {
		cur = g.edges[h].EdgeProperties
	}

	props := next(cur, exists)
	if err := models.CheckStrength(props.Strength); err != nil {
		return NoEdge, fmt.Errorf("edge %d -> %d: %w", src.ID, dst.ID, err)
	}

	if err := g.observer.WillAddEdge(ctx, src.ID, dst.ID, &props); err != nil {
		return NoEdge, fmt.Errorf("adding edge %d -> %d: %w", src.ID, dst.ID, err)
	}

	if exists {
		g.edges[h].EdgeProperties = props
	} else {
		h = EdgeHandle(len(g.edges))
		g.edges = append(g.edges, &Edge{
			EdgeProperties: props,
			From:           from,
			To:             to,
			handle:         h,
			alive:          true,
		})
		g.pairs[pairKey{from: from, to: to}] = h
		src.out = append(src.out, h)
		dst.in = append(dst.in, h)
		g.liveEdges++
	}

	if err := g.observer.DidAddEdge(ctx, src.ID, dst.ID, props); err != nil {
		return h, fmt.Errorf("added edge %d -> %d: %w", src.ID, dst.ID, err)
	}

	return h, nil
}

// RemoveEdge removes a single edge.
func (g *Graph) RemoveEdge(ctx context.Context, h EdgeHandle) error {
	e := g.Edge(h)
	if e == nil {
		return fmt.Errorf("edge handle %d: %w", h, models.ErrNotFound)
	}

	fromID, toID := g.vertices[e.From].ID, g.vertices[e.To].ID

	if err := g.observer.WillRemoveEdge(ctx, fromID, toID); err != nil {
		return fmt.Errorf("removing edge %d -> %d: %w", fromID, toID, err)
	}

	g.unlinkEdge(e)

	if err := g.observer.DidRemoveEdge(ctx, fromID, toID); err != nil {
		return fmt.Errorf("removed edge %d -> %d: %w", fromID, toID, err)
	}

	return nil
}

// unlinkEdge detaches e from its endpoints and tombstones it without hooks.
func (g *Graph) unlinkEdge(e *Edge) {
	src, dst := g.vertices[e.From], g.vertices[e.To]

	src.out = slices.DeleteFunc(src.out, func(x EdgeHandle) bool { return x == e.handle })
	dst.in = slices.DeleteFunc(dst.in, func(x EdgeHandle) bool { return x == e.handle })

	delete(g.pairs, pairKey{from: e.From, to: e.To})
	e.alive = false
	g.liveEdges--
}

// Hit increments the traversal counter of an edge. Hit counts are sampling
// bookkeeping, not structure, so no hooks fire.
func (g *Graph) Hit(h EdgeHandle) {
	if e := g.Edge(h); e != nil {
		e.EnergyHits++
	}
}

// AddDocTermEdge is the indexing contract: it links the document with the
// given id to term, creating the term (or phrase) vertex if needed, and
// strengthens both doc -> term and term -> doc by strength.
func (g *Graph) AddDocTermEdge(ctx context.Context, docID int64, term string, strength float64) error {
	doc, ok := g.byID[docID]
	if !ok {
		return fmt.Errorf("document %d: %w", docID, models.ErrNotFound)
	}

	if term == "" {
		return models.ErrMissingContent
	}

	if err := models.CheckStrength(strength); err != nil {
		return fmt.Errorf("document %d term %q: %w", docID, term, err)
	}

	t, err := g.AddVertex(ctx, models.VertexProperties{Type: models.TermTypeOf(term), Content: term})
	if err != nil {
		return err
	}

	if _, err := g.StrengthenEdge(ctx, doc, t, strength); err != nil {
		return err
	}

	if _, err := g.StrengthenEdge(ctx, t, doc, strength); err != nil {
		return err
	}

	return nil
}
