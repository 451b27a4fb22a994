package migrations

import "embed"

// FS contains embedded SQLite migrations for prediction history.
//
//go:embed *.sql
var FS embed.FS
