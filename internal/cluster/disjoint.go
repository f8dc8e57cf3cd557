// Package cluster groups the vertices of a weighted session graph: spanning
// trees, dendrograms with re-cut, agglomerative merging with a pluggable
// linkage, weak components by threshold, neighborhood-similarity edge
// separation and silhouette quality.
package cluster

// DisjointSets is a union-find forest over the integers [0, n) with union by
// rank and path compression.
type DisjointSets struct {
	parent []int
	rank   []uint8
	sets   int
}

// NewDisjointSets creates n singleton sets.
func NewDisjointSets(n int) *DisjointSets {
	d := &DisjointSets{
		parent: make([]int, n),
		rank:   make([]uint8, n),
		sets:   n,
	}

	for i := range d.parent {
		d.parent[i] = i
	}

	return d
}

// Find returns the representative of x.
func (d *DisjointSets) Find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}

	for d.parent[x] != root {
		x, d.parent[x] = d.parent[x], root
	}

	return root
}

// Union merges the sets of a and b and reports whether they were distinct.
func (d *DisjointSets) Union(a, b int) bool {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return false
	}

	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}

	d.sets--

	return true
}

// Len returns the number of elements.
func (d *DisjointSets) Len() int { return len(d.parent) }

// Sets returns the number of disjoint sets.
func (d *DisjointSets) Sets() int { return d.sets }

// Clone returns an independent copy.
func (d *DisjointSets) Clone() *DisjointSets {
	return &DisjointSets{
		parent: append([]int(nil), d.parent...),
		rank:   append([]uint8(nil), d.rank...),
		sets:   d.sets,
	}
}
