// Package loansdb embeds the schema migrations for the loans database.
package loansdb

import "embed"

//go:embed *.sql
var Files embed.FS
