package cluster

import (
	"cmp"
	"container/heap"
	"math"
	"slices"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// Paths holds all-pairs shortest-path distances between resident vertices.
type Paths struct {
	vertices []graph.VertexHandle
	index    map[graph.VertexHandle]int
	dist     [][]float64
}

// Distance returns the shortest-path distance between a and b, +Inf when
// they are not connected or not covered.
func (p *Paths) Distance(a, b graph.VertexHandle) float64 {
	i, okA := p.index[a]
	j, okB := p.index[b]

	if !okA || !okB {
		return math.Inf(1)
	}

	return p.dist[i][j]
}

// Vertices returns the covered vertices.
func (p *Paths) Vertices() []graph.VertexHandle { return p.vertices }

// ShortestPaths runs Dijkstra from every resident vertex over symmetric edge
// lengths: u and v are joined by the smaller of their two directed distances.
// Negative and NaN distances are ignored. progress, if set, is called once
// per source vertex.
func ShortestPaths(g *graph.Graph, distances weighting.Weights, progress models.ProgressFunc) *Paths {
	vertices := g.Vertices()

	p := &Paths{
		vertices: vertices,
		index:    make(map[graph.VertexHandle]int, len(vertices)),
		dist:     make([][]float64, len(vertices)),
	}

	for i, h := range vertices {
		p.index[h] = i
	}

	lengths := make([]map[int]float64, len(vertices))
	for i := range lengths {
		lengths[i] = make(map[int]float64)
	}

	for _, eh := range g.Edges() {
		e := g.Edge(eh)
		d := distances.Of(eh)

		if !(d >= 0) || math.IsInf(d, 1) || e.From == e.To {
			continue
		}

		a, b := p.index[e.From], p.index[e.To]
		if cur, ok := lengths[a][b]; !ok || d < cur {
			lengths[a][b] = d
			lengths[b][a] = d
		}
	}

	adj := make([][]arc, len(vertices))
	for i, m := range lengths {
		adj[i] = make([]arc, 0, len(m))
		for n, d := range m {
			adj[i] = append(adj[i], arc{to: n, length: d})
		}

		slices.SortFunc(adj[i], func(x, y arc) int { return cmp.Compare(x.to, y.to) })
	}

	for src := range vertices {
		p.dist[src] = dijkstra(adj, src)

		if progress != nil {
			progress("shortest_paths", src+1, len(vertices))
		}
	}

	return p
}

// arc is one undirected adjacency entry; lists are kept sorted by target.
type arc struct {
	to     int
	length float64
}

type distItem struct {
	v    int
	dist float64
}

type distHeap []distItem

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x any)        { *h = append(*h, x.(distItem)) } //nolint:errcheck // only distItem is pushed.

func (h *distHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]

	return it
}

func dijkstra(adj [][]arc, src int) []float64 {
	dist := make([]float64, len(adj))
	for i := range dist {
		dist[i] = math.Inf(1)
	}

	dist[src] = 0
	q := &distHeap{{v: src}}

	for q.Len() > 0 {
		it := heap.Pop(q).(distItem) //nolint:errcheck // only distItem is pushed.
		if it.dist > dist[it.v] {
			continue
		}

		for _, a := range adj[it.v] {
			if nd := it.dist + a.length; nd < dist[a.to] {
				dist[a.to] = nd
				heap.Push(q, distItem{v: a.to, dist: nd})
			}
		}
	}

	return dist
}

// SilhouetteResult holds silhouette scores in [-1, 1].
type SilhouetteResult struct {
	PerVertex  map[graph.VertexHandle]float64
	PerCluster map[int]float64
	Overall    float64
}

// Silhouette scores a cluster assignment. For each vertex, a is its mean
// distance to the other members of its cluster and b the smallest mean
// distance to the members of another cluster; the score is (b-a)/max(a,b).
// Members of singleton clusters score 0. Unreachable pairs are left out of
// the means, and a vertex without any finite a or b scores 0. Sums run in
// vertex order, so equal inputs give bit-identical scores. progress, if set,
// is called once per scored vertex.
func Silhouette(paths *Paths, clusters map[graph.VertexHandle]int, progress models.ProgressFunc) *SilhouetteResult {
	members := make(map[int][]graph.VertexHandle)
	for _, h := range paths.Vertices() {
		if c, ok := clusters[h]; ok {
			members[c] = append(members[c], h)
		}
	}

	res := &SilhouetteResult{
		PerVertex:  make(map[graph.VertexHandle]float64, len(clusters)),
		PerCluster: make(map[int]float64, len(members)),
	}

	if len(members) == 0 {
		return res
	}

	n := 0
	for _, vs := range members {
		n += len(vs)
	}

	scored := 0
	sums := make(map[int]float64, len(members))
	total := 0.0

	for _, v := range paths.Vertices() {
		c, ok := clusters[v]
		if !ok {
			continue
		}

		s := vertexSilhouette(paths, v, c, members)
		res.PerVertex[v] = s
		sums[c] += s
		total += s
		scored++

		if progress != nil {
			progress("silhouette", scored, n)
		}
	}

	for c, vs := range members {
		res.PerCluster[c] = sums[c] / float64(len(vs))
	}

	res.Overall = total / float64(scored)

	return res
}

func vertexSilhouette(paths *Paths, v graph.VertexHandle, own int, members map[int][]graph.VertexHandle) float64 {
	if len(members[own]) <= 1 {
		return 0
	}

	a, ok := meanDistance(paths, v, members[own])
	if !ok {
		return 0
	}

	b := math.Inf(1)

	for c, vs := range members {
		if c == own {
			continue
		}

		if m, ok := meanDistance(paths, v, vs); ok && m < b {
			b = m
		}
	}

	if math.IsInf(b, 1) {
		return 0
	}

	denom := max(a, b)
	if denom == 0 {
		return 0
	}

	return (b - a) / denom
}

// meanDistance averages the finite distances from v to the other listed vertices.
func meanDistance(paths *Paths, v graph.VertexHandle, vs []graph.VertexHandle) (float64, bool) {
	sum, n := 0.0, 0

	for _, u := range vs {
		if u == v {
			continue
		}

		if d := paths.Distance(v, u); !math.IsInf(d, 1) {
			sum += d
			n++
		}
	}

	if n == 0 {
		return 0, false
	}

	return sum / float64(n), true
}
