package cluster

import (
	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// WeakComponents labels the connected components of g, ignoring edge
// direction and every edge weighing less than threshold. It returns the
// component count and a dense component id per resident vertex, numbered in
// vertex-handle order.
func WeakComponents(g *graph.Graph, w weighting.Weights, threshold float64) (int, map[graph.VertexHandle]int) {
	comp := make(map[graph.VertexHandle]int, g.VertexCount())
	count := 0

	var stack []graph.VertexHandle

	visit := func(h graph.VertexHandle, edges []graph.EdgeHandle, outgoing bool) {
		for _, eh := range edges {
			if w.Of(eh) < threshold {
				continue
			}

			e := g.Edge(eh)

			next := e.From
			if outgoing {
				next = e.To
			}

			if _, seen := comp[next]; !seen {
				comp[next] = comp[h]
				stack = append(stack, next)
			}
		}
	}

	for _, start := range g.Vertices() {
		if _, seen := comp[start]; seen {
			continue
		}

		comp[start] = count
		stack = append(stack[:0], start)

		for len(stack) > 0 {
			h := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			visit(h, g.OutEdges(h), true)
			visit(h, g.InEdges(h), false)
		}

		count++
	}

	return count, comp
}
