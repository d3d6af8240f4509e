// Package migrations embeds the goose migrations for the sqlite storage backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
