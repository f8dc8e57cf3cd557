// Package weighting computes per-edge weights from local edge state, global
// graph state, or both multiplied together.
package weighting

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/persistorai/corpusgraph/internal/graph"
	"github.com/persistorai/corpusgraph/internal/models"
)

// Scheme names accepted by ByName.
const (
	NameLocal    = "local"
	NameGlobal   = "global"
	NameComposed = "lg"
)

// Float is the set of result types weights can be computed in.
type Float interface {
	~float32 | ~float64
}

// EdgeView is the edge state a scheme may look at. It describes both
// resident edges and neighbor-list entries that are not resident yet.
type EdgeView struct {
	Strength   float64
	FromDegree int64
	ToDegree   int64
	Target     models.VertexType
}

// ViewOf builds the view of a resident edge.
func ViewOf(g *graph.Graph, e *graph.Edge) EdgeView {
	var target models.VertexType
	if v := g.Vertex(e.To); v != nil {
		target = v.Type
	}

	return EdgeView{
		Strength:   e.Strength,
		FromDegree: e.FromDegree,
		ToDegree:   e.ToDegree,
		Target:     target,
	}
}

// NeighborView builds the view of a neighbor-list entry.
func NeighborView(n models.Neighbor) EdgeView {
	return EdgeView{
		Strength:   n.Edge.Strength,
		FromDegree: n.Edge.FromDegree,
		ToDegree:   n.Edge.ToDegree,
		Target:     n.Vertex.Type,
	}
}

// Scheme computes the weight of one edge.
type Scheme interface {
	Name() string
	Weight(ctx context.Context, e EdgeView) (float64, error)
}

// Counter supplies vertex counts per type. *graph.Graph and every
// domain.Storage implement it.
type Counter interface {
	CountOfType(ctx context.Context, typ models.VertexType) (int64, error)
}

// Weights holds one weight per edge handle; tombstoned slots are zero.
type Weights []float64

// Of returns the weight of h, or zero if h is out of range.
func (w Weights) Of(h graph.EdgeHandle) float64 {
	if h < 0 || int(h) >= len(w) {
		return 0
	}

	return w[h]
}

// Local weights an edge by its raw co-occurrence strength.
type Local struct{}

var _ Scheme = Local{}

// Name implements Scheme.
func (Local) Name() string { return NameLocal }

// Weight implements Scheme.
func (Local) Weight(_ context.Context, e EdgeView) (float64, error) {
	return e.Strength, nil
}

// Global weights an edge by log(1 + N/to_degree), N being the number of
// vertices of the target's type. Counts are cached per type for the lifetime
// of the scheme.
type Global struct {
	counter Counter

	mu     sync.Mutex
	counts map[models.VertexType]int64
}

var _ Scheme = (*Global)(nil)

// NewGlobal creates a global scheme backed by counter.
func NewGlobal(counter Counter) *Global {
	return &Global{
		counter: counter,
		counts:  make(map[models.VertexType]int64),
	}
}

// Name implements Scheme.
func (g *Global) Name() string { return NameGlobal }

// Weight implements Scheme. A zero to_degree or a zero type count is treated as 1.
func (g *Global) Weight(ctx context.Context, e EdgeView) (float64, error) {
	n, err := g.count(ctx, e.Target)
	if err != nil {
		return 0, err
	}

	return math.Log1p(float64(max(n, 1)) / float64(max(e.ToDegree, 1))), nil
}

func (g *Global) count(ctx context.Context, typ models.VertexType) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n, ok := g.counts[typ]; ok {
		return n, nil
	}

	n, err := g.counter.CountOfType(ctx, typ)
	if err != nil {
		return 0, fmt.Errorf("global weight: %w", err)
	}

	g.counts[typ] = n

	return n, nil
}

// Composed multiplies a local and a global weight per edge (LG weighting).
type Composed struct {
	Local  Scheme
	Global Scheme
}

var _ Scheme = Composed{}

// NewComposed creates the standard LG scheme.
func NewComposed(counter Counter) Composed {
	return Composed{Local: Local{}, Global: NewGlobal(counter)}
}

// Name implements Scheme.
func (c Composed) Name() string { return NameComposed }

// Weight implements Scheme.
func (c Composed) Weight(ctx context.Context, e EdgeView) (float64, error) {
	l, err := c.Local.Weight(ctx, e)
	if err != nil {
		return 0, err
	}

	gw, err := c.Global.Weight(ctx, e)
	if err != nil {
		return 0, err
	}

	return l * gw, nil
}

// WeightAll evaluates both sub-schemes over every resident edge into separate
// scratch slices and multiplies them.
func (c Composed) WeightAll(ctx context.Context, g *graph.Graph) (Weights, error) {
	local, err := weighEach(ctx, g, c.Local)
	if err != nil {
		return nil, err
	}

	global, err := weighEach(ctx, g, c.Global)
	if err != nil {
		return nil, err
	}

	return Multiply(local, global), nil
}

// Multiply returns the element-wise product of a and b, sized to the longer input.
// Missing elements count as zero.
func Multiply[S ~[]W, W Float](a, b S) S {
	out := make(S, max(len(a), len(b)))

	for i := range min(len(a), len(b)) {
		out[i] = a[i] * b[i]
	}

	return out
}

// bulkScheme is implemented by schemes with a faster whole-graph path.
type bulkScheme interface {
	WeightAll(ctx context.Context, g *graph.Graph) (Weights, error)
}

// EdgeWeights computes the weight of every resident edge of g.
func EdgeWeights(ctx context.Context, g *graph.Graph, s Scheme) (Weights, error) {
	if b, ok := s.(bulkScheme); ok {
		return b.WeightAll(ctx, g)
	}

	return weighEach(ctx, g, s)
}

func weighEach(ctx context.Context, g *graph.Graph, s Scheme) (Weights, error) {
	out := make(Weights, g.EdgeCap())

	for _, h := range g.Edges() {
		w, err := s.Weight(ctx, ViewOf(g, g.Edge(h)))
		if err != nil {
			return nil, fmt.Errorf("weighting edge %d with %s: %w", h, s.Name(), err)
		}

		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			w = 0
		}

		out[h] = w
	}

	return out, nil
}

// Inverse turns similarity weights into distances: 1/w, with zero mapped to +Inf.
func Inverse(w Weights) Weights {
	out := make(Weights, len(w))

	for i, x := range w {
		if x == 0 {
			out[i] = math.Inf(1)
			continue
		}

		out[i] = 1 / x
	}

	return out
}

// ByName returns the scheme registered under name.
func ByName(name string, counter Counter) (Scheme, error) {
	switch name {
	case NameLocal:
		return Local{}, nil
	case NameGlobal:
		return NewGlobal(counter), nil
	case NameComposed:
		return NewComposed(counter), nil
	default:
		return nil, models.InvalidConfigf("unknown weighting %q (want local, global or lg)", name)
	}
}
