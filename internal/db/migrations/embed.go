// Package migrations embeds the SQL migration files of the corpus graph schema.
package migrations

import "embed"

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
