// Package migrations embeds the goose-formatted SQL schema files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
