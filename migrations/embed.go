// Package migrations embeds the SQL migration sources so binaries can run
// them without a copy of the repository on disk.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS
