package activation

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the users and mailing list migrations
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
