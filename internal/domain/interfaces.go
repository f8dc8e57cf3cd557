// Package domain defines the capability sets shared between the graph engine
// and its storage backends. The engine depends on these interfaces rather than
// on a concrete adapter, so one graph type works against any backend.
package domain

import (
	"context"

	"github.com/persistorai/corpusgraph/internal/models"
)

// Storage is the read side of a storage adapter plus collection and vertex
// metadata. Lookups that miss return an error wrapping models.ErrNotFound;
// I/O failures are returned as *models.StorageError.
type Storage interface {
	Resolve(ctx context.Context, content string, typ models.VertexType) (int64, error)
	FetchProperties(ctx context.Context, ids []int64) ([]models.VertexProperties, error)
	FetchNeighbors(ctx context.Context, ids []int64) (map[int64][]models.Neighbor, error)
	CountOfType(ctx context.Context, typ models.VertexType) (int64, error)

	GetMeta(ctx context.Context, key, def string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	GetVertexMeta(ctx context.Context, id int64, key string) (string, error)
	SetVertexMeta(ctx context.Context, id int64, key, value string) error
}

// Observer receives will/did notifications around every structural mutation
// of a graph. A Will hook returning an error aborts the mutation; a Did hook
// error is returned to the caller after the in-memory change has happened.
//
// WillAddVertex may assign props.ID (storage-generated identity).
// SetMirror switches between immediate and deferred persistence.
type Observer interface {
	WillAddVertex(ctx context.Context, props *models.VertexProperties) error
	DidAddVertex(ctx context.Context, props models.VertexProperties) error
	WillRemoveVertex(ctx context.Context, id int64) error
	DidRemoveVertex(ctx context.Context, id int64) error

	WillAddEdge(ctx context.Context, from, to int64, props *models.EdgeProperties) error
	DidAddEdge(ctx context.Context, from, to int64, props models.EdgeProperties) error
	WillRemoveEdge(ctx context.Context, from, to int64) error
	DidRemoveEdge(ctx context.Context, from, to int64) error

	WillClearVertex(ctx context.Context, id int64) error
	DidClearVertex(ctx context.Context, id int64) error
	WillClearGraph(ctx context.Context) error
	DidClearGraph(ctx context.Context) error

	SetMirror(ctx context.Context, on bool) error
}

// Backend is a storage adapter that also observes graph mutation.
type Backend interface {
	Storage
	Observer
}

// NopObserver implements Observer with no-ops. Embed it to override only some hooks.
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) WillAddVertex(context.Context, *models.VertexProperties) error { return nil }
func (NopObserver) DidAddVertex(context.Context, models.VertexProperties) error   { return nil }
func (NopObserver) WillRemoveVertex(context.Context, int64) error                 { return nil }
func (NopObserver) DidRemoveVertex(context.Context, int64) error                  { return nil }

func (NopObserver) WillAddEdge(context.Context, int64, int64, *models.EdgeProperties) error {
	return nil
}

func (NopObserver) DidAddEdge(context.Context, int64, int64, models.EdgeProperties) error {
	return nil
}

func (NopObserver) WillRemoveEdge(context.Context, int64, int64) error { return nil }
func (NopObserver) DidRemoveEdge(context.Context, int64, int64) error  { return nil }
func (NopObserver) WillClearVertex(context.Context, int64) error       { return nil }
func (NopObserver) DidClearVertex(context.Context, int64) error        { return nil }
func (NopObserver) WillClearGraph(context.Context) error               { return nil }
func (NopObserver) DidClearGraph(context.Context) error                { return nil }
func (NopObserver) SetMirror(context.Context, bool) error              { return nil }
