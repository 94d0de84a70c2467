// Package migrations embeds the SQL schema files, one directory per dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var Files embed.FS
