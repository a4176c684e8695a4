// Package migrations embeds the forward-only SQL schema migrations.
package migrations

import "embed"

// FS contains the numbered *.sql files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
