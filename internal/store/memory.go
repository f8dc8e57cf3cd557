package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/models"
)

type identity struct {
	content string
	typ     models.VertexType
}

// MemoryStore is an in-process backend with the same contract as PGStore.
// Like PGStore it persists graph mutations only while mirroring is on, and
// recomputes edge degrees when mirroring is switched off.
type MemoryStore struct {
	mu  sync.RWMutex
	log *logrus.Logger

	mirror   bool
	nextID   int64
	vertices map[int64]models.VertexProperties
	identity map[identity]int64
	out      map[int64]map[int64]models.EdgeProperties

	meta       map[string]string
	vertexMeta map[int64]map[string]string
}

var _ domain.Backend = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process backend.
func NewMemoryStore(log *logrus.Logger) *MemoryStore {
	return &MemoryStore{
		log:        log,
		nextID:     1,
		vertices:   make(map[int64]models.VertexProperties),
		identity:   make(map[identity]int64),
		out:        make(map[int64]map[int64]models.EdgeProperties),
		meta:       make(map[string]string),
		vertexMeta: make(map[int64]map[string]string),
	}
}

// Resolve returns the id of the vertex with the given identity.
func (s *MemoryStore) Resolve(_ context.Context, content string, typ models.VertexType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identity[identity{content: content, typ: typ}]
	if !ok {
		return 0, fmt.Errorf("resolving %s %q: %w", typ, content, models.ErrNotFound)
	}

	return id, nil
}

// FetchProperties returns the properties of the listed vertices in request
// order. Unknown ids are omitted.
func (s *MemoryStore) FetchProperties(_ context.Context, ids []int64) ([]models.VertexProperties, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.VertexProperties, 0, len(ids))

	for _, id := range ids {
		if p, ok := s.vertices[id]; ok {
			out = append(out, s.withMeta(p))
		}
	}

	return out, nil
}

// FetchNeighbors returns the outgoing neighbor list of every listed vertex,
// ordered by neighbor id.
func (s *MemoryStore) FetchNeighbors(_ context.Context, ids []int64) (map[int64][]models.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64][]models.Neighbor, len(ids))

	for _, id := range ids {
		if _, ok := s.vertices[id]; !ok {
			continue
		}

		adj := s.out[id]
		targets := slices.Sorted(maps.Keys(adj))
		list := make([]models.Neighbor, 0, len(targets))

		for _, to := range targets {
			list = append(list, models.Neighbor{Edge: adj[to], Vertex: s.withMeta(s.vertices[to])})
		}

		out[id] = list
	}

	return out, nil
}

// CountOfType returns the number of stored vertices of the given type.
func (s *MemoryStore) CountOfType(_ context.Context, typ models.VertexType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64

	for _, p := range s.vertices {
		if p.Type == typ {
			n++
		}
	}

	return n, nil
}

// GetMeta returns collection metadata or def.
func (s *MemoryStore) GetMeta(_ context.Context, key, def string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.meta[key]; ok {
		return v, nil
	}

	return def, nil
}

// SetMeta stores collection metadata.
func (s *MemoryStore) SetMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta[key] = value

	return nil
}

// GetVertexMeta returns a vertex metadata value, empty if unset.
func (s *MemoryStore) GetVertexMeta(_ context.Context, id int64, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.vertices[id]; !ok {
		return "", fmt.Errorf("vertex %d: %w", id, models.ErrNotFound)
	}

	return s.vertexMeta[id][key], nil
}

// SetVertexMeta stores a vertex metadata value.
func (s *MemoryStore) SetVertexMeta(_ context.Context, id int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vertices[id]; !ok {
		return fmt.Errorf("vertex %d: %w", id, models.ErrNotFound)
	}

	if s.vertexMeta[id] == nil {
		s.vertexMeta[id] = make(map[string]string)
	}

	s.vertexMeta[id][key] = value

	return nil
}

func (s *MemoryStore) withMeta(p models.VertexProperties) models.VertexProperties {
	if len(s.vertexMeta[p.ID]) > 0 {
		p.Meta = maps.Clone(s.vertexMeta[p.ID])
	}

	return p
}

// --- Observer ---

// WillAddVertex assigns the stored id of the vertex identity, allocating a
// new one if the vertex is not stored yet.
func (s *MemoryStore) WillAddVertex(_ context.Context, props *models.VertexProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mirror {
		return nil
	}

	if id, ok := s.identity[identity{content: props.Content, typ: props.Type}]; ok {
		props.ID = id
		return nil
	}

	if props.ID <= 0 {
		props.ID = s.nextID
	}

	return nil
}

// DidAddVertex stores the vertex.
func (s *MemoryStore) DidAddVertex(_ context.Context, props models.VertexProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mirror {
		return nil
	}

	if _, ok := s.vertices[props.ID]; ok {
		return nil
	}

	meta := props.Meta
	props.Meta = nil
	s.vertices[props.ID] = props
	s.identity[identity{content: props.Content, typ: props.Type}] = props.ID

	if len(meta) > 0 {
		s.vertexMeta[props.ID] = maps.Clone(meta)
	}

	if props.ID >= s.nextID {
		s.nextID = props.ID + 1
	}

	return nil
}

// WillRemoveVertex implements domain.Observer.
func (s *MemoryStore) WillRemoveVertex(context.Context, int64) error { return nil }

// DidRemoveVertex deletes the vertex, its edges and its metadata.
func (s *MemoryStore) DidRemoveVertex(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mirror {
		return nil
	}

	p, ok := s.vertices[id]
	if !ok {
		return nil
	}

	s.clearEdges(id)
	delete(s.vertices, id)
	delete(s.identity, identity{content: p.Content, typ: p.Type})
	delete(s.vertexMeta, id)

	return nil
}

// WillAddEdge implements domain.Observer.
func (s *MemoryStore) WillAddEdge(context.Context, int64, int64, *models.EdgeProperties) error {
	return nil
}

// DidAddEdge stores the edge, replacing a stored one between the same pair.
func (s *MemoryStore) DidAddEdge(_ context.Context, from, to int64, props models.EdgeProperties) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mirror {
		return nil
	}

	if s.out[from] == nil {
		s.out[from] = make(map[int64]models.EdgeProperties)
	}

	s.out[from][to] = props

	return nil
}

// WillRemoveEdge implements domain.Observer.
func (s *MemoryStore) WillRemoveEdge(context.Context, int64, int64) error { return nil }

// DidRemoveEdge deletes the stored edge.
func (s *MemoryStore) DidRemoveEdge(_ context.Context, from, to int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mirror {
		delete(s.out[from], to)
	}

	return nil
}

// WillClearVertex implements domain.Observer.
func (s *MemoryStore) WillClearVertex(context.Context, int64) error { return nil }

// DidClearVertex deletes every stored edge incident to id.
func (s *MemoryStore) DidClearVertex(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mirror {
		s.clearEdges(id)
	}

	return nil
}

// WillClearGraph implements domain.Observer.
func (s *MemoryStore) WillClearGraph(context.Context) error { return nil }

// DidClearGraph implements domain.Observer. Clearing a session graph never
// deletes stored data.
func (s *MemoryStore) DidClearGraph(context.Context) error { return nil }

// SetMirror switches persistence on or off. Switching off recomputes the
// degree fields of every stored edge.
func (s *MemoryStore) SetMirror(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mirror == on {
		return nil
	}

	s.mirror = on

	if !on {
		s.recomputeDegrees()
	}

	s.log.WithField("mirror", on).Debug("store.mirror")

	return nil
}

func (s *MemoryStore) clearEdges(id int64) {
	delete(s.out, id)

	for _, adj := range s.out {
		delete(adj, id)
	}
}

func (s *MemoryStore) recomputeDegrees() {
	for from, adj := range s.out {
		for to, e := range adj {
			e.FromDegree = int64(len(adj))
			e.ToDegree = int64(len(s.out[to]))
			adj[to] = e
		}

		s.out[from] = adj
	}
}
