package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// Ensure LexicalStore implements the interface.
var _ driven.LexicalStore = (*LexicalStore)(nil)

// lexicalSchema describes the FTS5 table in index info.
const lexicalSchema = "txtsql(text, id UNINDEXED) tokenize='porter unicode61'"

// LexicalStore is an FTS5 full-text index stored in a single SQLite file.
type LexicalStore struct {
	path            string
	highlightBefore string
	highlightAfter  string

	mu sync.RWMutex
	db *sql.DB
}

// NewLexicalStore creates a store for the index file at path. When either
// highlight delimiter is set, search hits carry highlighted text.
func NewLexicalStore(path, highlightBefore, highlightAfter string) *LexicalStore {
	return &LexicalStore{
		path:            path,
		highlightBefore: highlightBefore,
		highlightAfter:  highlightAfter,
	}
}

// Path returns the index file path.
func (s *LexicalStore) Path() string {
	return s.path
}

// Reindex builds a new index file from rows and replaces the existing one.
func (s *LexicalStore) Reindex(ctx context.Context, rows []driven.LexicalRow) error {
	meta := buildMeta(ctx)
	meta[metaRows] = strconv.Itoa(len(rows))

	return buildFile(ctx, s.path, migrations.Lexical, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, "INSERT INTO txtsql (text, id) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.Text, r.ID); err != nil {
				return fmt.Errorf("inserting %s: %w", r.ID, err)
			}
		}
		return writeMeta(ctx, tx, meta)
	})
}

// Open opens the existing index file for queries.
func (s *LexicalStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := openExisting(s.path)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "SELECT 1 FROM txtsql LIMIT 1"); err != nil {
		db.Close()
		return fmt.Errorf("%s is not a lexical index: %w", s.path, err)
	}
	s.db = db
	return nil
}

func (s *LexicalStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("%w: %s not opened", domain.ErrIndexNotFound, s.path)
	}
	return s.db, nil
}

// SearchPhrase runs a BM25-ranked full-text query.
func (s *LexicalStore) SearchPhrase(ctx context.Context, phrase string, limit int) ([]driven.LexicalHit, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	match := SanitizeQuery(phrase)
	if match == "" {
		return nil, fmt.Errorf("%w: nothing to search for in %q", domain.ErrMalformedQuery, phrase)
	}

	highlight := s.highlightBefore != "" || s.highlightAfter != ""
	query := "SELECT id, text, bm25(txtsql)"
	args := []any{}
	if highlight {
		query += ", highlight(txtsql, 0, ?, ?)"
		args = append(args, s.highlightBefore, s.highlightAfter)
	}
	query += " FROM txtsql WHERE txtsql MATCH ? ORDER BY rank LIMIT ?"
	args = append(args, match, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit
	for rows.Next() {
		var h driven.LexicalHit
		dest := []any{&h.ID, &h.Text, &h.Raw}
		if highlight {
			dest = append(dest, &h.Highlighted)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(err)
	}
	scoreHits(hits)
	return hits, nil
}

// scoreHits sets each hit's score to its raw bm25() magnitude relative to the
// best hit of the page, so the best hit scores 1 and scores follow rank.
// SQLite floors the IDF of a term found in half the rows or more at 1e-6,
// which leaves absolute magnitudes near zero on small corpora. When every
// magnitude is zero the score decays with rank instead.
func scoreHits(hits []driven.LexicalHit) {
	best := 0.0
	for _, h := range hits {
		best = math.Max(best, math.Abs(h.Raw))
	}
	for i := range hits {
		if best == 0 {
			hits[i].Score = 1 / float64(i+1)
			continue
		}
		hits[i].Score = math.Abs(hits[i].Raw) / best
	}
}

func classifyQueryError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "fts5") || strings.Contains(msg, "MATCH") || strings.Contains(msg, "syntax error") {
		return fmt.Errorf("%w: %v", domain.ErrMalformedQuery, err)
	}
	return fmt.Errorf("querying lexical index: %w", err)
}

// Count returns the number of indexed rows.
func (s *LexicalStore) Count(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM txtsql").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

// Info describes the opened index.
func (s *LexicalStore) Info(ctx context.Context) domain.IndexInfo {
	info := domain.IndexInfo{
		FilePath: s.path,
		Backend:  "sqlite-fts5",
		Config:   map[string]string{"schema": lexicalSchema},
	}
	if s.highlightBefore != "" || s.highlightAfter != "" {
		info.Config["highlight_before"] = s.highlightBefore
		info.Config["highlight_after"] = s.highlightAfter
	}

	n, err := s.Count(ctx)
	if err != nil {
		info.Config["error"] = err.Error()
		return info
	}
	info.Size = n

	db, _ := s.conn()
	info.Config["schema_version"] = strconv.Itoa(schemaVersion(ctx, db))
	if meta, err := readMeta(ctx, db); err == nil {
		for _, k := range []string{metaBuildID, metaBuiltAt} {
			if v := meta[k]; v != "" {
				info.Config[k] = v
			}
		}
	}
	return info
}

// Close closes the database connection.
func (s *LexicalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
