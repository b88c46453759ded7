// Package migrations embeds the SQL schema files so binaries can migrate
// without carrying the directory around.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
