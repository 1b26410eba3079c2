// Package persistence holds the storage models and embedded schema migrations.
package persistence

import "embed"

// MigrationFS embeds the SQL migration files applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
