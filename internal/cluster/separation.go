package cluster

import (
	"math"
	"math/rand/v2"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// Similarity is a sparse distribution over the vertices reachable from one
// vertex.
type Similarity map[graph.VertexHandle]float64

// SimilarityStrategy computes the neighborhood similarity vector of a vertex.
type SimilarityStrategy interface {
	Name() string

	// Depth is the hop bound k of the vectors.
	Depth() int

	Similarity(g *graph.Graph, w weighting.Weights, v graph.VertexHandle) Similarity
}

// BFSSimilarity spreads a unit of mass from the vertex for MaxDepth hops,
// splitting it at every hop by outgoing weight. The mass reaching a vertex at
// hop i contributes Decay^(i-1) to its similarity.
type BFSSimilarity struct {
	MaxDepth int
	Decay    float64
}

var _ SimilarityStrategy = BFSSimilarity{}

// Name implements SimilarityStrategy.
func (BFSSimilarity) Name() string { return "bfs" }

// Depth implements SimilarityStrategy.
func (s BFSSimilarity) Depth() int { return s.MaxDepth }

// Similarity implements SimilarityStrategy.
func (s BFSSimilarity) Similarity(g *graph.Graph, w weighting.Weights, v graph.VertexHandle) Similarity {
	sim := make(Similarity)
	mass := map[graph.VertexHandle]float64{v: 1}
	factor := 1.0

	for range s.MaxDepth {
		next := make(map[graph.VertexHandle]float64)

		for u, p := range mass {
			out := g.OutEdges(u)

			total := outWeight(w, out)
			if total <= 0 {
				continue
			}

			for _, eh := range out {
				if x := w.Of(eh); x > 0 {
					next[g.Edge(eh).To] += p * x / total
				}
			}
		}

		if len(next) == 0 {
			break
		}

		for x, p := range next {
			sim[x] += p * factor
		}

		mass = next
		factor *= s.decay()
	}

	return sim
}

func (s BFSSimilarity) decay() float64 { return decayOrOne(s.Decay) }

// WalkSimilarity estimates the BFSSimilarity distribution by sampling Walks
// random walks of up to MaxDepth hops.
type WalkSimilarity struct {
	MaxDepth int
	Walks    int
	Decay    float64
	Rand     *rand.Rand
}

var _ SimilarityStrategy = WalkSimilarity{}

// Name implements SimilarityStrategy.
func (WalkSimilarity) Name() string { return "walk" }

// Depth implements SimilarityStrategy.
func (s WalkSimilarity) Depth() int { return s.MaxDepth }

// Similarity implements SimilarityStrategy.
func (s WalkSimilarity) Similarity(g *graph.Graph, w weighting.Weights, v graph.VertexHandle) Similarity {
	sim := make(Similarity)
	if s.Walks <= 0 {
		return sim
	}

	unit := 1 / float64(s.Walks)

	for range s.Walks {
		at := v
		factor := 1.0

		for range s.MaxDepth {
			out := g.OutEdges(at)

			total := outWeight(w, out)
			if total <= 0 {
				break
			}

			at = g.Edge(out[choose(s.Rand, w, out, total)]).To
			sim[at] += unit * factor
			factor *= decayOrOne(s.Decay)
		}
	}

	return sim
}

// Validate rejects a missing random source and out-of-range parameters.
func (s WalkSimilarity) Validate() error {
	if s.Rand == nil {
		return models.InvalidConfigf("walk similarity needs a random source")
	}

	if s.Walks < 0 || s.MaxDepth < 0 {
		return models.InvalidConfigf("walks and depth must not be negative")
	}

	return validateDecay(s.Decay)
}

// Validate rejects out-of-range parameters.
func (s BFSSimilarity) Validate() error {
	if s.MaxDepth < 0 {
		return models.InvalidConfigf("similarity depth must not be negative, got %d", s.MaxDepth)
	}

	return validateDecay(s.Decay)
}

func validateDecay(d float64) error {
	if d != 0 && !(d > 0 && d <= 1) {
		return models.InvalidConfigf("similarity decay must be in (0, 1], got %v", d)
	}

	return nil
}

// decayOrOne treats an unset decay as no decay.
func decayOrOne(d float64) float64 {
	if d == 0 {
		return 1
	}

	return d
}

func outWeight(w weighting.Weights, edges []graph.EdgeHandle) float64 {
	total := 0.0
	for _, eh := range edges {
		if x := w.Of(eh); x > 0 {
			total += x
		}
	}

	return total
}

func choose(r *rand.Rand, w weighting.Weights, edges []graph.EdgeHandle, total float64) int {
	u := r.Float64() * total
	cum := 0.0
	last := 0

	for i, eh := range edges {
		x := w.Of(eh)
		if x <= 0 {
			continue
		}

		cum += x
		last = i

		if u < cum {
			return i
		}
	}

	return last
}

// L1 returns the sum of absolute per-key differences of a and b.
func L1(a, b Similarity) float64 {
	d := 0.0

	for k, x := range a {
		d += math.Abs(x - b[k])
	}

	for k, y := range b {
		if _, ok := a[k]; !ok {
			d += math.Abs(y)
		}
	}

	return d
}

// Separate runs passes of neighborhood-similarity re-weighting. Each pass
// computes the similarity vector of every vertex from the previous pass's
// weights and sets the weight of every edge u -> v to exp(2k - L1(sim(u), sim(v))),
// k being the strategy depth. Edges between vertices with alike
// neighborhoods gain weight; the others lose it.
func Separate(g *graph.Graph, w weighting.Weights, s SimilarityStrategy, passes int, progress models.ProgressFunc) (weighting.Weights, error) {
	if passes < 0 {
		return nil, models.InvalidConfigf("separation passes must not be negative, got %d", passes)
	}

	if v, ok := s.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	cur := append(weighting.Weights(nil), w...)
	if len(cur) < g.EdgeCap() {
		cur = append(cur, make(weighting.Weights, g.EdgeCap()-len(cur))...)
	}

	k := float64(s.Depth())

	for pass := range passes {
		sims := make(map[graph.VertexHandle]Similarity, g.VertexCount())
		for _, h := range g.Vertices() {
			sims[h] = s.Similarity(g, cur, h)
		}

		next := make(weighting.Weights, len(cur))
		for _, eh := range g.Edges() {
			e := g.Edge(eh)
			next[eh] = math.Exp(2*k - L1(sims[e.From], sims[e.To]))
		}

		cur = next

		metrics.SeparationPasses.Inc()

		if progress != nil {
			progress("separate", pass+1, passes)
		}
	}

	return cur, nil
}
