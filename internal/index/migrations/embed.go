// Package migrations embeds the schema migrations for durable index
// collections.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
