// Migration runner using goose (github.com/pressly/goose/v3).
//
// Migration files live in internal/db/migrations/ and are embedded via //go:embed.
// The CLI migrate command applies all pending migrations; up and down steps
// live in the same file (-- +goose Up / -- +goose Down).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/corpusgraph/internal/dbpool"
)

// RunMigrations applies all pending migrations from the provided filesystem
// and returns the number applied. The fsys should contain goose-annotated
// SQL files (e.g. "00001_initial.sql").
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) (int, error) {
	// goose requires a *sql.DB; open one on the pool's connection string
	// through the pgx stdlib driver.
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return 0, fmt.Errorf("opening sql.DB for migrations: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return 0, fmt.Errorf("creating goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return 0, fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}

	if len(results) == 0 {
		log.Debug("all migrations already applied")
	}

	return len(results), nil
}
