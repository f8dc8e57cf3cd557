package graph

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetMirror switches between immediate persistence of every mutation (bulk
// indexing) and deferred persistence (read-mostly query sessions). Switching
// mirroring off recomputes the degree fields of all edges once.
func (g *Graph) SetMirror(ctx context.Context, on bool) error {
	if g.mirror == on {
		return nil
	}

	if err := g.observer.SetMirror(ctx, on); err != nil {
		return fmt.Errorf("setting mirror %t: %w", on, err)
	}

	g.mirror = on

	if !on {
		g.RecomputeDegrees()
	}

	g.log.WithFields(logrus.Fields{
		"mirror":   on,
		"vertices": g.liveVertices,
		"edges":    g.liveEdges,
	}).Debug("graph.mirror")

	return nil
}

// RecomputeDegrees sets FromDegree and ToDegree of every edge to the current
// out-degree of its source and target.
func (g *Graph) RecomputeDegrees() {
	for _, e := range g.edges {
		if !e.alive {
			continue
		}

		e.FromDegree = int64(len(g.vertices[e.From].out))
		e.ToDegree = int64(len(g.vertices[e.To].out))
	}
}

// Clear removes every vertex and edge and starts a new extraction generation.
func (g *Graph) Clear(ctx context.Context) error {
	if err := g.observer.WillClearGraph(ctx); err != nil {
		return fmt.Errorf("clearing graph: %w", err)
	}

	dropped := g.liveVertices
	g.reset()
	g.generation++

	if err := g.observer.DidClearGraph(ctx); err != nil {
		return fmt.Errorf("cleared graph: %w", err)
	}

	g.log.WithFields(logrus.Fields{
		"vertices":   dropped,
		"generation": g.generation,
	}).Debug("graph.clear")

	return nil
}

// Generation identifies the current extraction session; it changes on every Clear.
func (g *Graph) Generation() uint64 { return g.generation }

// MarkFetched records that the neighbor list of the vertex with the given id
// has been fetched from storage in this generation.
func (g *Graph) MarkFetched(id int64) {
	g.fetched[id] = struct{}{}
}

// Fetched reports whether the neighbor list of id was fetched in this generation.
func (g *Graph) Fetched(id int64) bool {
	_, ok := g.fetched[id]
	return ok
}
