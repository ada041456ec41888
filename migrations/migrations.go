// Package migrations embeds the goose SQL migrations for every supported
// database. Each dialect has its own directory.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// Directory names inside FS.
const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
