package db

import "embed"

// MigrationFS embeds the users and tasks schema migrations.
// Used by the migrate runner (cmd/migrate and cmd/server on startup).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
