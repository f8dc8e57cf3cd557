package cluster

import (
	"github.com/persistorai/corpusgraph/internal/graph"
)

// Dendrogram is a hierarchical clustering given by an ordered link sequence:
// applying the first m links that join distinct clusters leaves |V|-m
// clusters. It keeps a base forest with no link applied and a current forest
// with a prefix of the links applied. Union-find merges cannot be undone, so
// cutting at more clusters than currently present rebuilds the current forest
// from the base and replays links.
type Dendrogram struct {
	vertices []graph.VertexHandle
	index    map[graph.VertexHandle]int
	links    []Link

	base    *DisjointSets
	current *DisjointSets
	applied int
	merges  int
}

// NewDendrogram creates a dendrogram over vertices. Links whose endpoints are
// not both listed are ignored. The dendrogram starts with every vertex in its
// own cluster.
func NewDendrogram(vertices []graph.VertexHandle, links []Link) *Dendrogram {
	d := &Dendrogram{
		vertices: append([]graph.VertexHandle(nil), vertices...),
		index:    make(map[graph.VertexHandle]int, len(vertices)),
		links:    make([]Link, 0, len(links)),
	}

	for i, h := range d.vertices {
		d.index[h] = i
	}

	for _, l := range links {
		_, okFrom := d.index[l.From]
		_, okTo := d.index[l.To]

		if okFrom && okTo && l.From != l.To {
			d.links = append(d.links, l)
		}
	}

	d.base = NewDisjointSets(len(d.vertices))
	d.current = d.base.Clone()

	return d
}

// FromSpanningTree builds a dendrogram over all resident vertices of g whose
// merge order is the spanning tree order.
func FromSpanningTree(g *graph.Graph, tree []Link) *Dendrogram {
	return NewDendrogram(g.Vertices(), tree)
}

// SetNumClusters cuts the dendrogram at k clusters, clamped to [1, |V|].
// A disconnected link sequence may leave more than k clusters.
func (d *Dendrogram) SetNumClusters(k int) {
	n := len(d.vertices)
	k = min(max(k, 1), max(n, 1))
	target := max(n-k, 0)

	if target < d.merges {
		d.current = d.base.Clone()
		d.applied = 0
		d.merges = 0
	}

	for d.merges < target && d.applied < len(d.links) {
		l := d.links[d.applied]
		d.applied++

		if d.current.Union(d.index[l.From], d.index[l.To]) {
			d.merges++
		}
	}
}

// NumClusters returns the number of clusters at the current cut.
func (d *Dendrogram) NumClusters() int { return len(d.vertices) - d.merges }

// Clusters returns a dense cluster id per vertex. Ids are numbered in order
// of the first vertex of each cluster.
func (d *Dendrogram) Clusters() map[graph.VertexHandle]int {
	out := make(map[graph.VertexHandle]int, len(d.vertices))
	ids := make(map[int]int)

	for i, h := range d.vertices {
		root := d.current.Find(i)

		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}

		out[h] = id
	}

	return out
}

// Links returns the ordered link sequence.
func (d *Dendrogram) Links() []Link { return d.links }

// Vertices returns the clustered vertices.
func (d *Dendrogram) Vertices() []graph.VertexHandle { return d.vertices }
