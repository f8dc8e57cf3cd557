package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/models"
)

// PGStore is the Postgres adapter for one collection. It is safe for
// concurrent use; mirroring is a property of the adapter instance.
type PGStore struct {
	Base

	collection uuid.UUID
	name       string
	mirror     atomic.Bool

	counts singleflight.Group
	mu     sync.Mutex
	cached map[models.VertexType]int64
}

var _ domain.Backend = (*PGStore)(nil)

// OpenCollection returns the adapter for the named collection, creating the
// collection when create is set. A missing collection without create yields
// models.ErrNotFound.
func OpenCollection(ctx context.Context, base Base, name string, create bool) (*PGStore, error) {
	if name == "" {
		return nil, models.InvalidConfigf("collection name is required")
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var id uuid.UUID

	err := base.Pool.QueryRow(ctx, `SELECT id FROM collections WHERE name = $1`, name).Scan(&id)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows) && create:
		err = base.Pool.QueryRow(ctx,
			`INSERT INTO collections (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			uuid.New(), name,
		).Scan(&id)
		if err != nil {
			return nil, storageError("create_collection", err)
		}

		base.Log.WithField("collection", name).Info("collection created")
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("collection %q: %w", name, models.ErrNotFound)
	default:
		return nil, storageError("open_collection", err)
	}

	return &PGStore{
		Base:       base,
		collection: id,
		name:       name,
		cached:     make(map[models.VertexType]int64),
	}, nil
}

// Collection returns the collection key.
func (s *PGStore) Collection() uuid.UUID { return s.collection }

// Name returns the collection name.
func (s *PGStore) Name() string { return s.name }

// Resolve returns the id of the vertex with the given identity.
func (s *PGStore) Resolve(ctx context.Context, content string, typ models.VertexType) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var id int64

	err := s.Pool.QueryRow(ctx,
		`SELECT id FROM vertices
		 WHERE collection_id = $1 AND type_major = $2 AND type_minor = $3 AND content = $4`,
		s.collection, int16(typ.Major), int16(typ.Minor), content,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("resolving %s %q: %w", typ, content, models.ErrNotFound)
	}

	if err != nil {
		return 0, storageError("resolve", err)
	}

	return id, nil
}

// FetchProperties returns the listed vertices with their metadata, in
// request order. Unknown ids are omitted.
func (s *PGStore) FetchProperties(ctx context.Context, ids []int64) ([]models.VertexProperties, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, storageError("fetch_properties", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only, rollback after commit is a no-op.

	rows, err := tx.Query(ctx,
		`SELECT `+vertexColumns+` FROM vertices WHERE collection_id = $1 AND id = ANY($2)`,
		s.collection, ids,
	)
	if err != nil {
		return nil, storageError("fetch_properties", err)
	}

	byID := make(map[int64]models.VertexProperties, len(ids))

	for rows.Next() {
		p, err := scanVertex(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, storageError("fetch_properties", err)
		}

		byID[p.ID] = p
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, storageError("fetch_properties", err)
	}

	metaRows, err := tx.Query(ctx, `SELECT vertex_id, key, value FROM vertex_meta WHERE vertex_id = ANY($1)`, ids)
	if err != nil {
		return nil, storageError("fetch_vertex_meta", err)
	}
	defer metaRows.Close()

	for metaRows.Next() {
		var (
			id         int64
			key, value string
		)

		if err := metaRows.Scan(&id, &key, &value); err != nil {
			return nil, storageError("fetch_vertex_meta", err)
		}

		p, ok := byID[id]
		if !ok {
			continue
		}

		if p.Meta == nil {
			p.Meta = make(map[string]string)
		}

		p.Meta[key] = value
		byID[id] = p
	}

	if err := metaRows.Err(); err != nil {
		return nil, storageError("fetch_vertex_meta", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("fetch_properties", err)
	}

	out := make([]models.VertexProperties, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}

	return out, nil
}

// FetchNeighbors returns the outgoing neighbor lists of the listed vertices,
// ordered by neighbor id.
func (s *PGStore) FetchNeighbors(ctx context.Context, ids []int64) (map[int64][]models.Neighbor, error) {
	out := make(map[int64][]models.Neighbor, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT `+neighborColumns+`
		 FROM edges e JOIN vertices v ON v.id = e.target
		 WHERE e.collection_id = $1 AND e.source = ANY($2)
		 ORDER BY e.source, e.target`,
		s.collection, ids,
	)
	if err != nil {
		return nil, storageError("fetch_neighbors", err)
	}
	defer rows.Close()

	for rows.Next() {
		source, n, err := scanNeighbor(rows.Scan)
		if err != nil {
			return nil, storageError("fetch_neighbors", err)
		}

		out[source] = append(out[source], n)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("fetch_neighbors", err)
	}

	return out, nil
}

// CountOfType returns the number of vertices of the given type. Counts are
// cached until a mirrored vertex insert or delete, and concurrent misses for
// one type share a single query.
func (s *PGStore) CountOfType(ctx context.Context, typ models.VertexType) (int64, error) {
	s.mu.Lock()
	n, ok := s.cached[typ]
	s.mu.Unlock()

	if ok {
		return n, nil
	}

	v, err, _ := s.counts.Do(typ.String(), func() (any, error) {
		qctx, cancel := withTimeout(ctx)
		defer cancel()

		var count int64

		err := s.Pool.QueryRow(qctx,
			`SELECT count(*) FROM vertices WHERE collection_id = $1 AND type_major = $2 AND type_minor = $3`,
			s.collection, int16(typ.Major), int16(typ.Minor),
		).Scan(&count)
		if err != nil {
			return int64(0), storageError("count_of_type", err)
		}

		s.mu.Lock()
		s.cached[typ] = count
		s.mu.Unlock()

		return count, nil
	})
	if err != nil {
		return 0, err
	}

	return v.(int64), nil //nolint:errcheck // the group only returns int64.
}

func (s *PGStore) invalidateCounts() {
	s.mu.Lock()
	clear(s.cached)
	s.mu.Unlock()
}

// GetMeta returns collection metadata or def.
func (s *PGStore) GetMeta(ctx context.Context, key, def string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var value string

	err := s.Pool.QueryRow(ctx,
		`SELECT value FROM collection_meta WHERE collection_id = $1 AND key = $2`,
		s.collection, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}

	if err != nil {
		return "", storageError("get_meta", err)
	}

	return value, nil
}

// SetMeta stores collection metadata.
func (s *PGStore) SetMeta(ctx context.Context, key, value string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO collection_meta (collection_id, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (collection_id, key) DO UPDATE SET value = EXCLUDED.value`,
		s.collection, key, value,
	)
	if err != nil {
		return storageError("set_meta", err)
	}

	return nil
}

// GetVertexMeta returns a vertex metadata value, empty if unset.
func (s *PGStore) GetVertexMeta(ctx context.Context, id int64, key string) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var value string

	err := s.Pool.QueryRow(ctx,
		`SELECT m.value FROM vertex_meta m JOIN vertices v ON v.id = m.vertex_id
		 WHERE v.collection_id = $1 AND m.vertex_id = $2 AND m.key = $3`,
		s.collection, id, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", storageError("get_vertex_meta", err)
	}

	return value, nil
}

// SetVertexMeta stores a vertex metadata value.
func (s *PGStore) SetVertexMeta(ctx context.Context, id int64, key, value string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO vertex_meta (vertex_id, key, value)
		 SELECT id, $3, $4 FROM vertices WHERE collection_id = $1 AND id = $2
		 ON CONFLICT (vertex_id, key) DO UPDATE SET value = EXCLUDED.value`,
		s.collection, id, key, value,
	)
	if err != nil {
		return storageError("set_vertex_meta", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("vertex %d: %w", id, models.ErrNotFound)
	}

	return nil
}
