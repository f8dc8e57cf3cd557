package store

import (
	"context"
	"maps"
	"slices"

	"github.com/persistorai/corpusgraph/internal/models"
)

// Mirroring reports whether graph mutations are persisted.
func (s *PGStore) Mirroring() bool { return s.mirror.Load() }

// SetMirror switches persistence on or off. Switching off recomputes the
// degree fields of every edge of the collection in one statement.
func (s *PGStore) SetMirror(ctx context.Context, on bool) error {
	if s.mirror.Swap(on) == on {
		return nil
	}

	s.Log.WithField("mirror", on).Debug("store.mirror")

	if on {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		`UPDATE edges e SET
		     from_degree = (SELECT count(*) FROM edges x WHERE x.source = e.source),
		     to_degree   = (SELECT count(*) FROM edges x WHERE x.source = e.target)
		 WHERE e.collection_id = $1`,
		s.collection,
	)
	if err != nil {
		return storageError("recompute_degrees", err)
	}

	s.Log.WithField("edges", tag.RowsAffected()).Debug("store.degrees")

	return nil
}

// WillAddVertex inserts the vertex (or finds the stored one with the same
// identity) and hands its id back to the graph.
func (s *PGStore) WillAddVertex(ctx context.Context, props *models.VertexProperties) error {
	if !s.Mirroring() {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.Pool.QueryRow(ctx,
		`INSERT INTO vertices (collection_id, type_major, type_minor, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (collection_id, type_major, type_minor, content)
		 DO UPDATE SET content = EXCLUDED.content
		 RETURNING id`,
		s.collection, int16(props.Type.Major), int16(props.Type.Minor), props.Content,
	).Scan(&props.ID)
	if err != nil {
		return storageError("add_vertex", err)
	}

	s.invalidateCounts()

	return nil
}

// DidAddVertex stores the metadata the vertex was created with.
func (s *PGStore) DidAddVertex(ctx context.Context, props models.VertexProperties) error {
	if !s.Mirroring() || len(props.Meta) == 0 {
		return nil
	}

	for _, key := range slices.Sorted(maps.Keys(props.Meta)) {
		if err := s.SetVertexMeta(ctx, props.ID, key, props.Meta[key]); err != nil {
			return err
		}
	}

	return nil
}

// WillRemoveVertex implements domain.Observer.
func (s *PGStore) WillRemoveVertex(context.Context, int64) error { return nil }

// DidRemoveVertex deletes the vertex; edges and metadata cascade.
func (s *PGStore) DidRemoveVertex(ctx context.Context, id int64) error {
	if !s.Mirroring() {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.Pool.Exec(ctx, `DELETE FROM vertices WHERE collection_id = $1 AND id = $2`, s.collection, id); err != nil {
		return storageError("remove_vertex", err)
	}

	s.invalidateCounts()

	return nil
}

// WillAddEdge implements domain.Observer.
func (s *PGStore) WillAddEdge(context.Context, int64, int64, *models.EdgeProperties) error {
	return nil
}

// DidAddEdge upserts the edge with the graph's properties.
func (s *PGStore) DidAddEdge(ctx context.Context, from, to int64, props models.EdgeProperties) error {
	if !s.Mirroring() {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO edges (collection_id, source, target, strength, from_degree, to_degree, energy_hits)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (source, target) DO UPDATE SET
		     strength = EXCLUDED.strength,
		     energy_hits = EXCLUDED.energy_hits`,
		s.collection, from, to, props.Strength, props.FromDegree, props.ToDegree, props.EnergyHits,
	)
	if err != nil {
		return storageError("add_edge", err)
	}

	return nil
}

// WillRemoveEdge implements domain.Observer.
func (s *PGStore) WillRemoveEdge(context.Context, int64, int64) error { return nil }

// DidRemoveEdge deletes the edge.
func (s *PGStore) DidRemoveEdge(ctx context.Context, from, to int64) error {
	if !s.Mirroring() {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`DELETE FROM edges WHERE collection_id = $1 AND source = $2 AND target = $3`,
		s.collection, from, to,
	)
	if err != nil {
		return storageError("remove_edge", err)
	}

	return nil
}

// WillClearVertex implements domain.Observer.
func (s *PGStore) WillClearVertex(context.Context, int64) error { return nil }

// DidClearVertex deletes every edge incident to the vertex.
func (s *PGStore) DidClearVertex(ctx context.Context, id int64) error {
	if !s.Mirroring() {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`DELETE FROM edges WHERE collection_id = $1 AND (source = $2 OR target = $2)`,
		s.collection, id,
	)
	if err != nil {
		return storageError("clear_vertex", err)
	}

	return nil
}

// WillClearGraph implements domain.Observer.
func (s *PGStore) WillClearGraph(context.Context) error { return nil }

// DidClearGraph implements domain.Observer. Clearing a session graph never
// deletes stored data.
func (s *PGStore) DidClearGraph(context.Context) error { return nil }
