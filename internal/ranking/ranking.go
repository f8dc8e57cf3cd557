// Package ranking scores vertices by spreading activation: seed energy is
// diffused over weighted outgoing edges in rounds, and every vertex
// accumulates the energy it receives.
package ranking

import (
	"fmt"
	"math"
	"slices"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/weighting"
)

// DefaultSeedEnergy dominates whatever accumulates over bounded iterations.
const DefaultSeedEnergy = 1e10

// DefaultMaxIterations bounds the number of diffusion rounds.
const DefaultMaxIterations = 20

// Options configures Spread.
type Options struct {
	// MaxIterations caps the number of rounds; zero means DefaultMaxIterations.
	MaxIterations int

	// MinEnergy is the outstanding energy a vertex needs to keep spreading.
	MinEnergy float64

	Progress models.ProgressFunc
}

// Validate rejects negative bounds.
func (o Options) Validate() error {
	if o.MaxIterations < 0 {
		return models.InvalidConfigf("max iterations must not be negative, got %d", o.MaxIterations)
	}

	if o.MinEnergy < 0 || math.IsNaN(o.MinEnergy) {
		return models.InvalidConfigf("min energy must not be negative, got %v", o.MinEnergy)
	}

	return nil
}

// Result holds the accumulated energy of every resident vertex.
type Result struct {
	Ranks      map[graph.VertexHandle]float64
	Iterations int
	Converged  bool
}

// Spread diffuses seed energy over g. In every round each vertex with
// outstanding energy hands all of it to its out-neighbors in proportion to
// edge weight over the vertex's total outgoing weight. A vertex without
// outgoing weight keeps what it received. Rounds stop when no energy is
// outstanding or the iteration cap is reached.
func Spread(g *graph.Graph, w weighting.Weights, seeds map[graph.VertexHandle]float64, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}

	n := g.VertexCap()
	rank := make([]float64, n)
	outstanding := make([]float64, n)

	for h, e := range seeds {
		if g.Vertex(h) == nil {
			return nil, fmt.Errorf("seed handle %d: %w", h, models.ErrNotFound)
		}

		if e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
			return nil, models.InvalidConfigf("seed energy must be finite and non-negative, got %v", e)
		}

		rank[h] += e
		outstanding[h] += e
	}

	active := activeSet(outstanding, opts.MinEnergy)
	iterations := 0

	for ; iterations < maxIter && len(active) > 0; iterations++ {
		next := make([]float64, n)

		for _, h := range active {
			e := outstanding[h]
			out := g.OutEdges(h)

			total := 0.0
			for _, eh := range out {
				total += positive(w.Of(eh))
			}

			if total <= 0 {
				continue
			}

			for _, eh := range out {
				share := e * positive(w.Of(eh)) / total
				if share == 0 {
					continue
				}

				to := g.Edge(eh).To
				next[to] += share
				rank[to] += share
			}
		}

		outstanding = next
		active = activeSet(outstanding, opts.MinEnergy)

		if opts.Progress != nil {
			opts.Progress("rank", iterations+1, maxIter)
		}
	}

	metrics.RankIterations.Observe(float64(iterations))

	res := &Result{
		Ranks:      make(map[graph.VertexHandle]float64, g.VertexCount()),
		Iterations: iterations,
		Converged:  len(active) == 0,
	}

	for _, h := range g.Vertices() {
		res.Ranks[h] = rank[h]
	}

	return res, nil
}

// activeSet lists the handles holding more than floor outstanding energy.
func activeSet(outstanding []float64, floor float64) []graph.VertexHandle {
	var out []graph.VertexHandle

	for h, e := range outstanding {
		if e > floor {
			out = append(out, graph.VertexHandle(h))
		}
	}

	return out
}

func positive(x float64) float64 {
	if x > 0 && !math.IsInf(x, 1) {
		return x
	}

	return 0
}

// Relevance maps a rank to the presentation scale 1 + 10*log10(1 + rank).
// Values above 100 are decremented by one.
func Relevance(rank float64) float64 {
	r := 1 + 10*math.Log10(1+rank)
	if r > 100 {
		r--
	}

	return r
}

// UniformSeeds gives every handle the same energy, DefaultSeedEnergy if
// energy is not positive.
func UniformSeeds(handles []graph.VertexHandle, energy float64) map[graph.VertexHandle]float64 {
	if !(energy > 0) {
		energy = DefaultSeedEnergy
	}

	out := make(map[graph.VertexHandle]float64, len(handles))
	for _, h := range handles {
		out[h] = energy
	}

	return out
}

// Ordered returns the handles of ranks sorted by descending rank, ties by handle.
func Ordered(ranks map[graph.VertexHandle]float64) []graph.VertexHandle {
	out := make([]graph.VertexHandle, 0, len(ranks))
	for h := range ranks {
		out = append(out, h)
	}

	slices.SortFunc(out, func(a, b graph.VertexHandle) int {
		switch {
		case ranks[a] > ranks[b]:
			return -1
		case ranks[a] < ranks[b]:
			return 1
		default:
			return int(a) - int(b)
		}
	})

	return out
}
