// Package migrations embeds the SQL schemas of the SQLite index artifacts.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed lexical/*.sql vectors/*.sql
var FS embed.FS

// Schema directories within FS, one per artifact type.
const (
	Lexical = "lexical"
	Vectors = "vectors"
)
