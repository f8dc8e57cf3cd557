package cluster_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/cluster"
	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/subgraph"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

const eps = 1e-9

type wedge struct {
	from, to int
	weight   float64
}

// buildGraph creates n vertices and one directed edge per entry, with the
// entry weight as strength. When mirrored, the reverse edge is added too.
func buildGraph(t *testing.T, n int, edges []wedge, mirrored bool) (*graph.Graph, []graph.VertexHandle, weighting.Weights) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	g := graph.New(graph.WithLogger(log))
	ctx := context.Background()

	handles := make([]graph.VertexHandle, n)
	for i := range n {
		h, err := g.AddVertex(ctx, models.VertexProperties{Type: models.TermType, Content: string(rune('a' + i))})
		if err != nil {
			t.Fatalf("AddVertex: %v", err)
		}
		handles[i] = h
	}

	for _, e := range edges {
		if _, err := g.AddEdge(ctx, handles[e.from], handles[e.to], models.EdgeProperties{Strength: e.weight}); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		if mirrored {
			if _, err := g.AddEdge(ctx, handles[e.to], handles[e.from], models.EdgeProperties{Strength: e.weight}); err != nil {
				t.Fatalf("AddEdge: %v", err)
			}
		}
	}

	w, err := weighting.EdgeWeights(ctx, g, weighting.Local{})
	if err != nil {
		t.Fatalf("EdgeWeights: %v", err)
	}

	return g, handles, w
}

var mstEdges = []wedge{
	{0, 1, 3}, {1, 2, 2}, {2, 0, 2}, {2, 3, 1}, {3, 4, 2}, {3, 5, 2}, {4, 5, 3},
}

func TestDisjointSets(t *testing.T) {
	d := cluster.NewDisjointSets(5)

	if !d.Union(0, 1) || !d.Union(3, 4) || !d.Union(1, 4) {
		t.Fatal("unions of distinct sets must succeed")
	}
	if d.Union(0, 3) {
		t.Error("union within one set must report false")
	}
	if d.Sets() != 2 {
		t.Errorf("sets = %d, want 2", d.Sets())
	}

	c := d.Clone()
	c.Union(2, 0)

	if d.Find(2) == d.Find(0) {
		t.Error("clone shares state with original")
	}
	if c.Sets() != 1 || d.Sets() != 2 {
		t.Errorf("sets clone/original = %d/%d, want 1/2", c.Sets(), d.Sets())
	}
}

func TestSpanningTree(t *testing.T) {
	g, _, w := buildGraph(t, 6, mstEdges, false)

	tests := []struct {
		order     cluster.Order
		wantTotal float64
	}{
		// The weight-1 edge (2,3) is the only link between {0,1,2} and
		// {3,4,5}, so every spanning tree contains it.
		{order: cluster.Maximum, wantTotal: 11},
		{order: cluster.Minimum, wantTotal: 9},
	}

	for _, tt := range tests {
		tree := cluster.SpanningTree(g, w, tt.order)

		if len(tree) != 5 {
			t.Errorf("order %d: %d links, want 5", tt.order, len(tree))
		}
		if got := cluster.TotalWeight(tree); got != tt.wantTotal {
			t.Errorf("order %d: total = %v, want %v", tt.order, got, tt.wantTotal)
		}
	}
}

func TestSpanningTree_Disconnected(t *testing.T) {
	g, _, w := buildGraph(t, 4, []wedge{{0, 1, 1}, {2, 3, 1}}, true)

	if tree := cluster.SpanningTree(g, w, cluster.Minimum); len(tree) != 2 {
		t.Errorf("links = %d, want 2", len(tree))
	}
}

func TestDendrogram_Cuts(t *testing.T) {
	g, h, w := buildGraph(t, 6, mstEdges, false)
	d := cluster.FromSpanningTree(g, cluster.SpanningTree(g, w, cluster.Maximum))

	if d.NumClusters() != 6 {
		t.Fatalf("initial clusters = %d, want 6", d.NumClusters())
	}

	d.SetNumClusters(1)
	ids := d.Clusters()
	for _, v := range h {
		if ids[v] != 0 {
			t.Fatalf("k=1: clusters = %v, want all 0", ids)
		}
	}

	d.SetNumClusters(2)
	ids = d.Clusters()
	if d.NumClusters() != 2 {
		t.Fatalf("k=2: NumClusters = %d", d.NumClusters())
	}
	if ids[h[0]] != ids[h[1]] || ids[h[1]] != ids[h[2]] || ids[h[3]] != ids[h[4]] || ids[h[4]] != ids[h[5]] || ids[h[0]] == ids[h[3]] {
		t.Errorf("k=2: clusters = %v, want {0,1,2} {3,4,5}", ids)
	}

	// Raising k forces a rebuild from the base forest.
	d.SetNumClusters(4)
	ids = d.Clusters()
	if d.NumClusters() != 4 {
		t.Fatalf("k=4: NumClusters = %d", d.NumClusters())
	}
	if ids[h[0]] != ids[h[1]] || ids[h[4]] != ids[h[5]] || ids[h[2]] == ids[h[0]] || ids[h[3]] == ids[h[4]] {
		t.Errorf("k=4: clusters = %v, want {0,1} {2} {3} {4,5}", ids)
	}

	for _, k := range []int{6, 7, 100} {
		d.SetNumClusters(k)
		seen := make(map[int]bool)
		for _, id := range d.Clusters() {
			seen[id] = true
		}
		if len(seen) != 6 {
			t.Errorf("k=%d: %d distinct ids, want 6 singletons", k, len(seen))
		}
	}

	d.SetNumClusters(0)
	if d.NumClusters() != 1 {
		t.Errorf("k=0 clamps to 1 cluster, got %d", d.NumClusters())
	}
}

func TestDendrogram_DisconnectedLinks(t *testing.T) {
	g, _, w := buildGraph(t, 4, []wedge{{0, 1, 1}, {2, 3, 1}}, false)
	d := cluster.FromSpanningTree(g, cluster.SpanningTree(g, w, cluster.Minimum))

	d.SetNumClusters(1)
	if d.NumClusters() != 2 {
		t.Errorf("clusters = %d, want 2 (no link joins the halves)", d.NumClusters())
	}
}

func TestAgglomerative_Combinators(t *testing.T) {
	g, h, w := buildGraph(t, 4, []wedge{{0, 1, 1}, {1, 2, 5}, {2, 3, 2}, {0, 3, 3}}, false)
	links := cluster.Links(g, w)

	tests := []struct {
		name string
		comb cluster.Combinator
		last float64
	}{
		{name: "single", comb: cluster.SingleLinkage, last: 3},
		{name: "complete", comb: cluster.CompleteLinkage, last: 5},
		{name: "average", comb: cluster.AverageLinkage, last: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := cluster.DendrogramFromDistanceMST(g.Vertices(), links, tt.comb)
			merges := d.Links()

			if len(merges) != 3 {
				t.Fatalf("merges = %d, want 3", len(merges))
			}
			if merges[0].Weight != 1 || merges[1].Weight != 2 {
				t.Errorf("first merges = %v, %v, want 1, 2", merges[0].Weight, merges[1].Weight)
			}
			if math.Abs(merges[2].Weight-tt.last) > eps {
				t.Errorf("final merge = %v, want %v", merges[2].Weight, tt.last)
			}

			d.SetNumClusters(2)
			ids := d.Clusters()
			if ids[h[0]] != ids[h[1]] || ids[h[2]] != ids[h[3]] || ids[h[0]] == ids[h[2]] {
				t.Errorf("k=2: clusters = %v", ids)
			}
		})
	}
}

func TestAgglomerative_SimilarityMatchesMaximumTree(t *testing.T) {
	g, h, w := buildGraph(t, 6, mstEdges, false)
	tree := cluster.SpanningTree(g, w, cluster.Maximum)

	d := cluster.DendrogramFromSimilarityMST(g.Vertices(), tree, cluster.SingleLinkage)

	merges := d.Links()
	if len(merges) != 5 {
		t.Fatalf("merges = %d, want 5", len(merges))
	}
	for i := 1; i < len(merges); i++ {
		if merges[i].Weight > merges[i-1].Weight {
			t.Errorf("similarity merges not descending: %v then %v", merges[i-1].Weight, merges[i].Weight)
		}
	}

	d.SetNumClusters(2)
	ids := d.Clusters()
	if ids[h[0]] != ids[h[2]] || ids[h[3]] != ids[h[5]] || ids[h[0]] == ids[h[3]] {
		t.Errorf("k=2: clusters = %v", ids)
	}
}

func TestWeakComponents_Threshold(t *testing.T) {
	g, h, w := buildGraph(t, 6, mstEdges, false)

	thresholds := []float64{0, 1, 2, 3, 4}
	want := []int{1, 1, 2, 4, 6}

	prev := 0
	for i, th := range thresholds {
		n, ids := cluster.WeakComponents(g, w, th)

		if n != want[i] {
			t.Errorf("threshold %v: components = %d, want %d", th, n, want[i])
		}
		if n < prev {
			t.Errorf("threshold %v: component count decreased %d -> %d", th, prev, n)
		}
		if len(ids) != len(h) {
			t.Errorf("threshold %v: %d labelled vertices, want %d", th, len(ids), len(h))
		}
		prev = n
	}

	_, ids := cluster.WeakComponents(g, w, 2)
	// Edge 2 -> 0 points backwards; direction must not matter.
	if ids[h[0]] != ids[h[2]] || ids[h[3]] != ids[h[5]] || ids[h[0]] == ids[h[3]] {
		t.Errorf("threshold 2: ids = %v", ids)
	}
}

// twoTriangles is {a,b,c} and {d,e,f} joined by the bridge c-d, all weights 1.
var twoTriangles = []wedge{
	{0, 1, 1}, {1, 2, 1}, {2, 0, 1},
	{3, 4, 1}, {4, 5, 1}, {5, 3, 1},
	{2, 3, 1},
}

func TestSeparate_StrengthensIntraClusterEdges(t *testing.T) {
	strategies := []cluster.SimilarityStrategy{
		cluster.BFSSimilarity{MaxDepth: 2, Decay: 1},
		cluster.WalkSimilarity{MaxDepth: 2, Walks: 4000, Decay: 1, Rand: subgraph.NewRand(11)},
	}

	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			g, h, w := buildGraph(t, 6, twoTriangles, true)

			var passes int
			sep, err := cluster.Separate(g, w, s, 2, func(string, int, int) { passes++ })
			if err != nil {
				t.Fatalf("Separate: %v", err)
			}
			if passes != 2 {
				t.Errorf("progress calls = %d, want 2", passes)
			}

			intra, _ := g.EdgeBetween(h[0], h[1])
			bridge, _ := g.EdgeBetween(h[2], h[3])

			if !(sep.Of(intra) > sep.Of(bridge)) {
				t.Errorf("intra %v not above bridge %v", sep.Of(intra), sep.Of(bridge))
			}

			for _, eh := range g.Edges() {
				if x := sep.Of(eh); math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
					t.Errorf("edge %d weight %v not finite and positive", eh, x)
				}
			}
		})
	}
}

func TestSeparate_BFSFirstPassValues(t *testing.T) {
	g, h, w := buildGraph(t, 6, twoTriangles, true)

	sep, err := cluster.Separate(g, w, cluster.BFSSimilarity{MaxDepth: 2, Decay: 1}, 1, nil)
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}

	intra, _ := g.EdgeBetween(h[0], h[1])
	bridge, _ := g.EdgeBetween(h[2], h[3])

	if want := math.Exp(4 - 0.5); math.Abs(sep.Of(intra)-want) > 1e-6 {
		t.Errorf("intra = %v, want %v", sep.Of(intra), want)
	}
	if want := math.Exp(4 - 16.0/9); math.Abs(sep.Of(bridge)-want) > 1e-6 {
		t.Errorf("bridge = %v, want %v", sep.Of(bridge), want)
	}
}

func TestSeparate_InvalidConfig(t *testing.T) {
	g, _, w := buildGraph(t, 2, []wedge{{0, 1, 1}}, true)

	tests := []struct {
		name     string
		strategy cluster.SimilarityStrategy
		passes   int
	}{
		{name: "negative passes", strategy: cluster.BFSSimilarity{MaxDepth: 1}, passes: -1},
		{name: "decay above one", strategy: cluster.BFSSimilarity{MaxDepth: 1, Decay: 2}, passes: 1},
		{name: "walk without rand", strategy: cluster.WalkSimilarity{MaxDepth: 1, Walks: 1}, passes: 1},
	}

	for _, tt := range tests {
		if _, err := cluster.Separate(g, w, tt.strategy, tt.passes, nil); !errors.Is(err, models.ErrInvalidConfig) {
			t.Errorf("%s: error = %v, want ErrInvalidConfig", tt.name, err)
		}
	}
}

func TestShortestPaths_SymmetricMinimum(t *testing.T) {
	g, h, w := buildGraph(t, 3, []wedge{{0, 1, 5}, {1, 0, 2}, {1, 2, 1}}, false)
	p := cluster.ShortestPaths(g, w, nil)

	if d := p.Distance(h[0], h[1]); d != 2 {
		t.Errorf("d(a,b) = %v, want 2", d)
	}
	if d := p.Distance(h[2], h[0]); d != 3 {
		t.Errorf("d(c,a) = %v, want 3", d)
	}
}

func TestSilhouette(t *testing.T) {
	g, h, w := buildGraph(t, 6, twoTriangles, true)
	p := cluster.ShortestPaths(g, w, nil)

	clusters := map[graph.VertexHandle]int{h[0]: 0, h[1]: 0, h[2]: 0, h[3]: 1, h[4]: 1, h[5]: 1}
	res := cluster.Silhouette(p, clusters, nil)

	if s := res.PerVertex[h[0]]; math.Abs(s-0.625) > eps {
		t.Errorf("s(a) = %v, want 0.625", s)
	}
	if s := res.PerVertex[h[2]]; math.Abs(s-0.4) > eps {
		t.Errorf("s(c) = %v, want 0.4", s)
	}
	if s := res.PerCluster[0]; math.Abs(s-0.55) > eps {
		t.Errorf("cluster 0 = %v, want 0.55", s)
	}
	if math.Abs(res.Overall-0.55) > eps {
		t.Errorf("overall = %v, want 0.55", res.Overall)
	}
}

func TestSilhouette_SingletonsAndUnreachable(t *testing.T) {
	g, h, w := buildGraph(t, 3, []wedge{{0, 1, 1}}, true)
	p := cluster.ShortestPaths(g, w, nil)

	res := cluster.Silhouette(p, map[graph.VertexHandle]int{h[0]: 0, h[1]: 0, h[2]: 1}, nil)

	if res.PerVertex[h[2]] != 0 {
		t.Errorf("singleton score = %v, want 0", res.PerVertex[h[2]])
	}
	// c is unreachable, so a and b have no finite b and score 0.
	if res.PerVertex[h[0]] != 0 || res.Overall != 0 {
		t.Errorf("scores = %v, overall %v", res.PerVertex, res.Overall)
	}
}

func TestSilhouette_ProgressAndStableSums(t *testing.T) {
	g, h, w := buildGraph(t, 6, twoTriangles, true)

	var pathSteps, scoreSteps []int
	progress := func(stage string, done, total int) {
		switch stage {
		case "shortest_paths":
			if total != 6 {
				t.Errorf("shortest_paths total = %d, want 6", total)
			}
			pathSteps = append(pathSteps, done)
		case "silhouette":
			if total != 5 {
				t.Errorf("silhouette total = %d, want 5", total)
			}
			scoreSteps = append(scoreSteps, done)
		default:
			t.Errorf("unexpected stage %q", stage)
		}
	}

	p := cluster.ShortestPaths(g, w, progress)
	// h[5] is left unassigned and must not be scored.
	clusters := map[graph.VertexHandle]int{h[0]: 0, h[1]: 0, h[2]: 0, h[3]: 1, h[4]: 1}
	first := cluster.Silhouette(p, clusters, progress)

	if len(pathSteps) != 6 || pathSteps[5] != 6 {
		t.Errorf("shortest_paths steps = %v, want 1..6", pathSteps)
	}
	if len(scoreSteps) != 5 || scoreSteps[4] != 5 {
		t.Errorf("silhouette steps = %v, want 1..5", scoreSteps)
	}
	if _, ok := first.PerVertex[h[5]]; ok {
		t.Error("unassigned vertex was scored")
	}

	for range 20 {
		again := cluster.Silhouette(cluster.ShortestPaths(g, w, nil), clusters, nil)
		if math.Float64bits(again.Overall) != math.Float64bits(first.Overall) {
			t.Fatalf("overall changed between runs: %v vs %v", again.Overall, first.Overall)
		}
		for c, s := range first.PerCluster {
			if math.Float64bits(again.PerCluster[c]) != math.Float64bits(s) {
				t.Fatalf("cluster %d changed between runs: %v vs %v", c, again.PerCluster[c], s)
			}
		}
	}
}
