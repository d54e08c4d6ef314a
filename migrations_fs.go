package bankfeed

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetCoreMigrationsFS returns the embedded schema migration tree. Postgres
// files sit at the root of data/sql/migrations with sqlite overrides in the
// sqlite subdirectory.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
