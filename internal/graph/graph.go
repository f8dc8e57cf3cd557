// Package graph provides the in-memory directed property graph the engine
// works on: documents and terms as vertices, co-occurrence links as edges.
//
// Vertices and edges live in vector-backed arenas and are addressed by
// integer handles. Removing an element tombstones its slot; handles are never
// reused until the graph is cleared. Every structural mutation is reported to
// a domain.Observer through will/did hooks, so a storage adapter can mirror
// (or ignore) it.
//
// A Graph is not safe for concurrent mutation. One instance serves one
// search or indexing session at a time.
package graph

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/models"
)

// VertexHandle addresses a vertex slot in the graph arena.
type VertexHandle int

// EdgeHandle addresses an edge slot in the graph arena.
type EdgeHandle int

// Sentinel handles.
const (
	NoVertex VertexHandle = -1
	NoEdge   EdgeHandle   = -1
)

// Vertex is a resident vertex. Pointers returned by the graph stay valid
// until the vertex is removed or the graph is cleared.
type Vertex struct {
	models.VertexProperties

	// ClusterID is the last cluster or component id assigned to the vertex, -1 if none.
	ClusterID int

	handle VertexHandle
	out    []EdgeHandle
	in     []EdgeHandle
	alive  bool
}

// Handle returns the vertex handle.
func (v *Vertex) Handle() VertexHandle { return v.handle }

// Edge is a resident directed edge.
type Edge struct {
	models.EdgeProperties

	From VertexHandle
	To   VertexHandle

	handle EdgeHandle
	alive  bool
}

// Handle returns the edge handle.
func (e *Edge) Handle() EdgeHandle { return e.handle }

type identityKey struct {
	content string
	typ     models.VertexType
}

type pairKey struct {
	from, to VertexHandle
}

// Graph is the working property graph of one session.
type Graph struct {
	vertices []*Vertex
	edges    []*Edge

	byID     map[int64]VertexHandle
	identity map[identityKey]VertexHandle
	pairs    map[pairKey]EdgeHandle

	liveVertices int
	liveEdges    int
	nextID       int64
	localID      int64

	storage  domain.Storage
	observer domain.Observer
	log      *logrus.Logger

	mirror     bool
	fetched    map[int64]struct{}
	generation uint64
	meta       map[string]string
}

// Option configures a Graph.
type Option func(*Graph)

// WithStorage attaches a storage adapter used for lookups, type counts and metadata.
func WithStorage(s domain.Storage) Option {
	return func(g *Graph) { g.storage = s }
}

// WithObserver attaches the receiver of will/did mutation hooks.
func WithObserver(o domain.Observer) Option {
	return func(g *Graph) { g.observer = o }
}

// WithBackend attaches a backend as both storage and observer.
func WithBackend(b domain.Backend) Option {
	return func(g *Graph) {
		g.storage = b
		g.observer = b
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(g *Graph) { g.log = log }
}

// New creates an empty graph in deferred (non-mirrored) mode.
func New(opts ...Option) *Graph {
	g := &Graph{
		observer: domain.NopObserver{},
		log:      logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	g.reset()

	return g
}

func (g *Graph) reset() {
	g.vertices = make([]*Vertex, 0, 64)
	g.edges = make([]*Edge, 0, 128)
	g.byID = make(map[int64]VertexHandle)
	g.identity = make(map[identityKey]VertexHandle)
	g.pairs = make(map[pairKey]EdgeHandle)
	g.fetched = make(map[int64]struct{})
	g.meta = make(map[string]string)
	g.liveVertices = 0
	g.liveEdges = 0
	g.nextID = 1
	g.localID = 0
}

// Storage returns the attached storage adapter, or nil.
func (g *Graph) Storage() domain.Storage { return g.storage }

// Mirroring reports whether mutations are mirrored to the backing store immediately.
func (g *Graph) Mirroring() bool { return g.mirror }

// VertexCount returns the number of resident vertices.
func (g *Graph) VertexCount() int { return g.liveVertices }

// EdgeCount returns the number of resident edges.
func (g *Graph) EdgeCount() int { return g.liveEdges }

// VertexCap returns one past the largest vertex handle issued since the last clear.
// Handle-indexed slices of this length can hold per-vertex state.
func (g *Graph) VertexCap() int { return len(g.vertices) }

// EdgeCap returns one past the largest edge handle issued since the last clear.
func (g *Graph) EdgeCap() int { return len(g.edges) }

// Vertex returns the vertex for h, or nil if h is not resident.
func (g *Graph) Vertex(h VertexHandle) *Vertex {
	if h < 0 || int(h) >= len(g.vertices) {
		return nil
	}

	v := g.vertices[h]
	if !v.alive {
		return nil
	}

	return v
}

// Edge returns the edge for h, or nil if h is not resident.
func (g *Graph) Edge(h EdgeHandle) *Edge {
	if h < 0 || int(h) >= len(g.edges) {
		return nil
	}

	e := g.edges[h]
	if !e.alive {
		return nil
	}

	return e
}

// VertexByID returns the handle of the resident vertex with the given id.
func (g *Graph) VertexByID(id int64) (VertexHandle, bool) {
	h, ok := g.byID[id]
	return h, ok
}

// Cached returns the handle of the resident vertex with the given identity.
func (g *Graph) Cached(content string, typ models.VertexType) (VertexHandle, bool) {
	h, ok := g.identity[identityKey{content: content, typ: typ}]
	return h, ok
}

// EdgeBetween returns the edge from -> to, if resident.
func (g *Graph) EdgeBetween(from, to VertexHandle) (EdgeHandle, bool) {
	h, ok := g.pairs[pairKey{from: from, to: to}]
	return h, ok
}

// Vertices returns all resident vertex handles in ascending order.
func (g *Graph) Vertices() []VertexHandle {
	out := make([]VertexHandle, 0, g.liveVertices)

	for _, v := range g.vertices {
		if v.alive {
			out = append(out, v.handle)
		}
	}

	return out
}

// Edges returns all resident edge handles in ascending order.
func (g *Graph) Edges() []EdgeHandle {
	out := make([]EdgeHandle, 0, g.liveEdges)

	for _, e := range g.edges {
		if e.alive {
			out = append(out, e.handle)
		}
	}

	return out
}

// OutEdges returns the outgoing edges of h in insertion order.
// The slice is owned by the graph and must not be modified.
func (g *Graph) OutEdges(h VertexHandle) []EdgeHandle {
	v := g.Vertex(h)
	if v == nil {
		return nil
	}

	return v.out
}

// InEdges returns the incoming edges of h in insertion order.
// The slice is owned by the graph and must not be modified.
func (g *Graph) InEdges(h VertexHandle) []EdgeHandle {
	v := g.Vertex(h)
	if v == nil {
		return nil
	}

	return v.in
}

// OutDegree returns the number of outgoing edges of h.
func (g *Graph) OutDegree(h VertexHandle) int {
	return len(g.OutEdges(h))
}

// CountOfType returns the number of vertices of the given type: the storage
// count when a storage adapter is attached, the resident count otherwise.
func (g *Graph) CountOfType(ctx context.Context, typ models.VertexType) (int64, error) {
	if g.storage != nil {
		n, err := g.storage.CountOfType(ctx, typ)
		if err != nil {
			return 0, fmt.Errorf("counting %s vertices: %w", typ, err)
		}

		return n, nil
	}

	var n int64

	for _, v := range g.vertices {
		if v.alive && v.Type == typ {
			n++
		}
	}

	return n, nil
}

// AssignClusters stores a cluster or component id on each listed vertex.
func (g *Graph) AssignClusters(ids map[VertexHandle]int) {
	for h, id := range ids {
		if v := g.Vertex(h); v != nil {
			v.ClusterID = id
		}
	}
}

func (g *Graph) vertexOrNotFound(h VertexHandle) (*Vertex, error) {
	v := g.Vertex(h)
	if v == nil {
		return nil, fmt.Errorf("vertex handle %d: %w", h, models.ErrNotFound)
	}

	return v, nil
}
