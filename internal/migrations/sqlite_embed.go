package migrations

import "embed"

// SQLite holds the mirror tables and the persistent sync queue schema.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
