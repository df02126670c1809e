// Package booksdb embeds the schema migrations for the books database.
package booksdb

import "embed"

//go:embed *.sql
var Files embed.FS
