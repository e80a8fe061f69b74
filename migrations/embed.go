// Package migrations holds the ordered SQL schema files applied by cmd/migrate
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
