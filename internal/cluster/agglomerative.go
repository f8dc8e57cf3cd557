package cluster

import (
	"container/heap"
	"slices"

	"github.com/persistorai/corpusgraph/internal/graph"
)

// Combinator merges the distances from two clusters a and b (of sizes na
// and nb) to a third cluster into the distance from a∪b to that cluster.
type Combinator func(da, db float64, na, nb int) float64

// SingleLinkage keeps the closer of the two distances.
func SingleLinkage(da, db float64, _, _ int) float64 { return min(da, db) }

// CompleteLinkage keeps the farther of the two distances.
func CompleteLinkage(da, db float64, _, _ int) float64 { return max(da, db) }

// AverageLinkage averages the two distances weighted by cluster size.
func AverageLinkage(da, db float64, na, nb int) float64 {
	return (da*float64(na) + db*float64(nb)) / float64(na+nb)
}

// DendrogramFromDistanceMST merges clusters along links in ascending
// distance order. After each merge, the links of both merged clusters to any
// other cluster are combined with comb and requeued. A link present on one
// side only is carried over unchanged.
func DendrogramFromDistanceMST(vertices []graph.VertexHandle, links []Link, comb Combinator) *Dendrogram {
	return agglomerate(vertices, links, comb, false)
}

// DendrogramFromSimilarityMST is DendrogramFromDistanceMST for similarity
// weights: clusters merge in descending similarity order. SingleLinkage
// keeps the higher similarity.
func DendrogramFromSimilarityMST(vertices []graph.VertexHandle, links []Link, comb Combinator) *Dendrogram {
	return agglomerate(vertices, links, comb, true)
}

// agglomerate runs the merge loop on distances. Similarities are negated on
// the way in and out, which maps min to max and leaves weighted means intact.
func agglomerate(vertices []graph.VertexHandle, links []Link, comb Combinator, similarity bool) *Dendrogram {
	if comb == nil {
		comb = SingleLinkage
	}

	sign := 1.0
	if similarity {
		sign = -1
	}

	index := make(map[graph.VertexHandle]int, len(vertices))
	for i, h := range vertices {
		index[h] = i
	}

	q := newLinkQueue()
	size := make([]int, len(vertices))
	for i := range size {
		size[i] = 1
	}

	for _, l := range links {
		a, okA := index[l.From]
		b, okB := index[l.To]

		if !okA || !okB || a == b {
			continue
		}

		d := sign * l.Weight
		if cur, ok := q.get(a, b); ok {
			d = comb(cur.dist, d, 1, 1)
		}

		q.put(a, b, d)
	}

	merges := make([]Link, 0, max(len(vertices)-1, 0))

	for q.Len() > 0 {
		it := heap.Pop(q).(*linkItem)
		a, b := it.a, it.b
		q.forget(it)

		merges = append(merges, Link{
			From:   vertices[a],
			To:     vertices[b],
			Weight: sign * it.dist,
			Edge:   graph.NoEdge,
		})

		for _, c := range q.touching(a, b) {
			ia, okA := q.get(a, c)
			ib, okB := q.get(b, c)

			var d float64

			switch {
			case okA && okB:
				d = comb(ia.dist, ib.dist, size[a], size[b])
			case okA:
				d = ia.dist
			default:
				d = ib.dist
			}

			q.remove(a, c)
			q.remove(b, c)
			q.put(a, c, d)
		}

		size[a] += size[b]
		size[b] = 0
	}

	return NewDendrogram(vertices, merges)
}

type pair struct{ lo, hi int }

func pairOf(a, b int) pair {
	if a > b {
		a, b = b, a
	}

	return pair{lo: a, hi: b}
}

type linkItem struct {
	a, b  int
	dist  float64
	seq   int
	index int
}

// linkQueue is an indexed min-heap of inter-cluster links with lookup by
// cluster pair and by cluster.
type linkQueue struct {
	items []*linkItem
	byKey map[pair]*linkItem
	adj   map[int]map[int]struct{}
	seq   int
}

func newLinkQueue() *linkQueue {
	return &linkQueue{
		byKey: make(map[pair]*linkItem),
		adj:   make(map[int]map[int]struct{}),
	}
}

func (q *linkQueue) Len() int { return len(q.items) }

func (q *linkQueue) Less(i, j int) bool {
	if q.items[i].dist != q.items[j].dist {
		return q.items[i].dist < q.items[j].dist
	}

	return q.items[i].seq < q.items[j].seq
}

func (q *linkQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *linkQueue) Push(x any) {
	it := x.(*linkItem) //nolint:errcheck // only *linkItem is pushed.
	it.index = len(q.items)
	q.items = append(q.items, it)
}

func (q *linkQueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	it.index = -1

	return it
}

func (q *linkQueue) get(a, b int) (*linkItem, bool) {
	it, ok := q.byKey[pairOf(a, b)]
	return it, ok
}

// put inserts or replaces the link between a and b. The link keeps a as its
// first endpoint so merges fold b into a.
func (q *linkQueue) put(a, b int, dist float64) {
	q.remove(a, b)

	it := &linkItem{a: a, b: b, dist: dist, seq: q.seq}
	q.seq++

	heap.Push(q, it)
	q.byKey[pairOf(a, b)] = it
	q.link(a, b)
	q.link(b, a)
}

func (q *linkQueue) remove(a, b int) {
	it, ok := q.get(a, b)
	if !ok {
		return
	}

	heap.Remove(q, it.index)
	q.forget(it)
}

// forget drops the bookkeeping of an item already taken off the heap.
func (q *linkQueue) forget(it *linkItem) {
	delete(q.byKey, pairOf(it.a, it.b))
	delete(q.adj[it.a], it.b)
	delete(q.adj[it.b], it.a)
}

func (q *linkQueue) link(a, b int) {
	if q.adj[a] == nil {
		q.adj[a] = make(map[int]struct{})
	}

	q.adj[a][b] = struct{}{}
}

// touching returns the clusters linked to a or b, ascending.
func (q *linkQueue) touching(a, b int) []int {
	var out []int

	for _, x := range []int{a, b} {
		for c := range q.adj[x] {
			if c != a && c != b {
				out = append(out, c)
			}
		}
	}

	slices.Sort(out)

	return slices.Compact(out)
}
