// Package migrations embeds the goose migrations for the attempt history store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
