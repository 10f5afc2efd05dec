package migrations

import "embed"

// FS contains the embedded SQLite migrations for game state storage.
//
//go:embed *.sql
var FS embed.FS
