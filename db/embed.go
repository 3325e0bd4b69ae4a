// Package db ships the SQL migrations with the binaries so deploys
// never depend on a migrations directory being present on disk.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
