// Package migrations embeds the platform's SQL schema migrations so
// cmd/migrate can discover them without relying on a path on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
