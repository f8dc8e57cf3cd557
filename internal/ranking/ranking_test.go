package ranking_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/ranking"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

func newGraph(t *testing.T, names ...string) (*graph.Graph, []graph.VertexHandle) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	g := graph.New(graph.WithLogger(log))
	handles := make([]graph.VertexHandle, 0, len(names))

	for _, name := range names {
		h, err := g.AddVertex(context.Background(), models.VertexProperties{Type: models.TermType, Content: name})
		if err != nil {
			t.Fatalf("AddVertex: %v", err)
		}
		handles = append(handles, h)
	}

	return g, handles
}

func addEdge(t *testing.T, g *graph.Graph, from, to graph.VertexHandle, strength float64) {
	t.Helper()

	if _, err := g.AddEdge(context.Background(), from, to, models.EdgeProperties{Strength: strength}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
}

func localWeights(t *testing.T, g *graph.Graph) weighting.Weights {
	t.Helper()

	w, err := weighting.EdgeWeights(context.Background(), g, weighting.Local{})
	if err != nil {
		t.Fatalf("EdgeWeights: %v", err)
	}

	return w
}

func TestSpread_SingleEdgeCarriesAllEnergy(t *testing.T) {
	for _, strength := range []float64{0.25, 1, 7} {
		g, h := newGraph(t, "a", "b")
		addEdge(t, g, h[0], h[1], strength)

		res, err := ranking.Spread(g, localWeights(t, g), map[graph.VertexHandle]float64{h[0]: ranking.DefaultSeedEnergy},
			ranking.Options{MaxIterations: 1})
		if err != nil {
			t.Fatalf("Spread: %v", err)
		}

		if got := res.Ranks[h[1]]; got != ranking.DefaultSeedEnergy {
			t.Errorf("weight %v: neighbor rank = %v, want %v", strength, got, ranking.DefaultSeedEnergy)
		}
		if res.Iterations != 1 {
			t.Errorf("iterations = %d, want 1", res.Iterations)
		}
	}
}

func TestSpread_ConvergesWhenEnergyIsAbsorbed(t *testing.T) {
	g, h := newGraph(t, "a", "b")
	addEdge(t, g, h[0], h[1], 1)

	res, err := ranking.Spread(g, localWeights(t, g), ranking.UniformSeeds(h[:1], 0), ranking.Options{})
	if err != nil {
		t.Fatalf("Spread: %v", err)
	}

	if !res.Converged || res.Iterations != 2 {
		t.Errorf("converged/iterations = %v/%d, want true/2", res.Converged, res.Iterations)
	}
	if res.Ranks[h[0]] != ranking.DefaultSeedEnergy || res.Ranks[h[1]] != ranking.DefaultSeedEnergy {
		t.Errorf("ranks = %v", res.Ranks)
	}
}

func TestSpread_ProportionalSplit(t *testing.T) {
	g, h := newGraph(t, "a", "b", "c", "d")
	addEdge(t, g, h[0], h[1], 1)
	addEdge(t, g, h[0], h[2], 3)
	addEdge(t, g, h[0], h[3], 0)

	res, err := ranking.Spread(g, localWeights(t, g), map[graph.VertexHandle]float64{h[0]: 4}, ranking.Options{})
	if err != nil {
		t.Fatalf("Spread: %v", err)
	}

	want := map[graph.VertexHandle]float64{h[0]: 4, h[1]: 1, h[2]: 3, h[3]: 0}
	for v, r := range want {
		if math.Abs(res.Ranks[v]-r) > 1e-12 {
			t.Errorf("rank[%d] = %v, want %v", v, res.Ranks[v], r)
		}
	}

	if got := ranking.Ordered(res.Ranks); !slices.Equal(got, []graph.VertexHandle{h[0], h[2], h[1], h[3]}) {
		t.Errorf("Ordered = %v", got)
	}
}

func TestSpread_IterationCap(t *testing.T) {
	g, h := newGraph(t, "a", "b")
	addEdge(t, g, h[0], h[1], 1)
	addEdge(t, g, h[1], h[0], 1)

	var rounds int
	res, err := ranking.Spread(g, localWeights(t, g), map[graph.VertexHandle]float64{h[0]: 1}, ranking.Options{
		MaxIterations: 5,
		Progress:      func(string, int, int) { rounds++ },
	})
	if err != nil {
		t.Fatalf("Spread: %v", err)
	}

	if res.Converged || res.Iterations != 5 || rounds != 5 {
		t.Errorf("converged/iterations/rounds = %v/%d/%d, want false/5/5", res.Converged, res.Iterations, rounds)
	}
	// a starts with 1 and receives in rounds 2 and 4; b receives in rounds 1, 3 and 5.
	if res.Ranks[h[0]] != 3 || res.Ranks[h[1]] != 3 {
		t.Errorf("ranks = %v", res.Ranks)
	}
}

func TestSpread_Errors(t *testing.T) {
	g, h := newGraph(t, "a")
	w := localWeights(t, g)

	if _, err := ranking.Spread(g, w, map[graph.VertexHandle]float64{42: 1}, ranking.Options{}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown seed error = %v, want ErrNotFound", err)
	}

	if _, err := ranking.Spread(g, w, map[graph.VertexHandle]float64{h[0]: 1}, ranking.Options{MaxIterations: -1}); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("negative cap error = %v, want ErrInvalidConfig", err)
	}

	if _, err := ranking.Spread(g, w, map[graph.VertexHandle]float64{h[0]: -1}, ranking.Options{}); !errors.Is(err, models.ErrInvalidConfig) {
		t.Errorf("negative energy error = %v, want ErrInvalidConfig", err)
	}
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		rank float64
		want float64
	}{
		{rank: 0, want: 1},
		{rank: 9, want: 11},
		{rank: 99, want: 21},
		{rank: 1e10, want: 100 + 10*math.Log10(1+1e-10)},
	}

	for _, tt := range tests {
		if got := ranking.Relevance(tt.rank); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Relevance(%v) = %v, want %v", tt.rank, got, tt.want)
		}
	}
}
