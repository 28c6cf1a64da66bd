// Package sqlite provides the SQLite-backed index artifacts.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. The build includes FTS5. Two artifact
// types live here:
//
//   - LexicalStore: the FTS5 table txtsql(text, id UNINDEXED) ranked with bm25()
//   - vector files: embeddings of the flat vector store, one row per entry
//
// # Schema
//
// Each artifact type has its own versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Atomic replacement
//
// Artifacts are built in a temporary file next to the stable path and renamed
// over it once complete. A reader that opened the old file keeps reading it;
// a reader opening after the rename sees the new one. A failed build leaves the
// previous artifact untouched.
package sqlite
