package cluster

import (
	"cmp"
	"slices"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// Order selects a minimum or a maximum spanning tree.
type Order int

// Spanning tree orders.
const (
	Minimum Order = iota
	Maximum
)

// Link is a weighted connection between two vertices. Edge is the graph edge
// the link came from, or graph.NoEdge for derived links.
type Link struct {
	From   graph.VertexHandle
	To     graph.VertexHandle
	Weight float64
	Edge   graph.EdgeHandle
}

// Links returns one link per resident edge of g, in edge-handle order.
func Links(g *graph.Graph, w weighting.Weights) []Link {
	out := make([]Link, 0, g.EdgeCount())

	for _, h := range g.Edges() {
		e := g.Edge(h)
		out = append(out, Link{From: e.From, To: e.To, Weight: w.Of(h), Edge: h})
	}

	return out
}

// SpanningTree runs Kruskal's algorithm over every edge of g, ordered by
// weight (ascending for Minimum, descending for Maximum, ties by edge handle).
// Edge direction is ignored. The result holds |V|-1 links for a connected
// graph and fewer otherwise.
func SpanningTree(g *graph.Graph, w weighting.Weights, order Order) []Link {
	links := Links(g, w)

	slices.SortStableFunc(links, func(a, b Link) int {
		if order == Maximum {
			return cmp.Compare(b.Weight, a.Weight)
		}

		return cmp.Compare(a.Weight, b.Weight)
	})

	sets := NewDisjointSets(g.VertexCap())
	tree := make([]Link, 0, max(g.VertexCount()-1, 0))

	for _, l := range links {
		if sets.Union(int(l.From), int(l.To)) {
			tree = append(tree, l)
		}
	}

	return tree
}

// TotalWeight sums the weights of links.
func TotalWeight(links []Link) float64 {
	total := 0.0
	for _, l := range links {
		total += l.Weight
	}

	return total
}
