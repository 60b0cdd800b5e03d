package migrations

import "embed"

// FS contains embedded SQLite migrations for save records.
//
//go:embed *.sql
var FS embed.FS
