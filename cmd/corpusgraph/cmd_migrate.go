package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/persistorai/corpusgraph/internal/db"
	"github.com/persistorai/corpusgraph/internal/db/migrations"
)

type migrateResult struct {
	Applied       int `json:"applied"`
	SchemaVersion int `json:"schema_version"`
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := connect(ctx, 1)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.RunMigrations(ctx, pool, logger, migrations.FS)
			if err != nil {
				return err
			}

			res := migrateResult{Applied: applied, SchemaVersion: db.SchemaVersion()}
			if flagFmt == "table" {
				formatTable([]string{"APPLIED", "SCHEMA VERSION"},
					[][]string{{strconv.Itoa(res.Applied), strconv.Itoa(res.SchemaVersion)}})
				return nil
			}
			output(res, strconv.Itoa(res.SchemaVersion))
			return nil
		},
	}
}
