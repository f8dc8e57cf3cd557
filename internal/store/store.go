// Package store provides the storage adapters behind the corpus graph.
//
// PGStore persists one collection in PostgreSQL; MemoryStore keeps one in
// process memory. Both implement domain.Backend: the read side the engine
// queries during extraction and weighting, and the observer side that mirrors
// graph mutations while mirroring is switched on.
package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/dbpool"
	"github.com/persistorai/corpusgraph/internal/metrics"
	"github.com/persistorai/corpusgraph/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for Postgres-backed stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// storageError counts and wraps an adapter failure.
func storageError(op string, err error) error {
	wrapped := models.NewStorageError(op, err)
	if wrapped != err {
		metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
	}

	return wrapped
}
