// Package flat provides an exact, in-memory vector store persisted as a
// SQLite file. Every query scores every entry, which keeps results exact and
// is fast enough for datasets of tens of thousands of entries.
package flat

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/storage/sqlite"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/vector"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

type entry struct {
	id    string
	docID string
	text  string
	unit  []float32
}

// Store is a flat cosine-similarity index.
type Store struct {
	path     string
	embedder driven.EmbeddingService

	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
	// dims is fixed by the first vector stored after a reset.
	dims        int
	initialized bool
	meta        sqlite.VectorFileMeta
}

// New creates an empty store persisted at path. The embedder embeds queries
// and entries stored without a vector; it may be nil for stores that are
// only fed pre-computed vectors and queried with SearchVector.
func New(path string, embedder driven.EmbeddingService) *Store {
	return &Store{
		path:     path,
		embedder: embedder,
		byID:     make(map[string]int),
	}
}

// Upsert inserts or replaces entries by ID.
func (s *Store) Upsert(ctx context.Context, entries []driven.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	embedded, err := vector.EmbedMissing(ctx, s.embedder, entries)
	if err != nil {
		return err
	}

	units := make([][]float32, len(embedded))
	for i, e := range embedded {
		u, err := vector.Normalize(e.Vector)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
		units[i] = u
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := s.dims
	for i, u := range units {
		if !s.initialized && i == 0 {
			dims = len(u)
		}
		if len(u) != dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, store has %d",
				domain.ErrInvalidInput, embedded[i].ID, len(u), dims)
		}
	}
	s.dims = dims
	s.initialized = true

	for i, e := range embedded {
		item := entry{id: e.ID, docID: e.DocID, text: e.Text, unit: units[i]}
		if at, ok := s.byID[e.ID]; ok {
			s.entries[at] = item
			continue
		}
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, item)
	}
	return nil
}

// Search embeds the query and returns the closest entries.
func (s *Store) Search(ctx context.Context, query string, limit int, filter domain.Filter) ([]driven.VectorHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return s.SearchVector(ctx, q, limit, filter)
}

// SearchVector returns the closest entries to a query vector.
func (s *Store) SearchVector(_ context.Context, query []float32, limit int, filter domain.Filter) ([]driven.VectorHit, error) {
	if limit <= 0 {
		return []driven.VectorHit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized || len(s.entries) == 0 {
		return []driven.VectorHit{}, nil
	}

	q, err := vector.Normalize(query)
	if err != nil {
		return nil, err
	}
	if len(q) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", domain.ErrInvalidInput, len(q), s.dims)
	}

	hits := make([]driven.VectorHit, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Matches(e.docID) {
			continue
		}
		hits = append(hits, driven.VectorHit{ID: e.id, Text: e.text, DocID: e.docID, Score: vector.Dot(q, e.unit)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Similarity scores texts against the query with the store's embedder.
func (s *Store) Similarity(ctx context.Context, query string, texts []string) ([]driven.TextScore, error) {
	return vector.ScoreTexts(ctx, s.embedder, query, texts)
}

// Delete removes an entry.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.byID[id]
	if !ok {
		return nil
	}
	last := len(s.entries) - 1
	if at != last {
		s.entries[at] = s.entries[last]
		s.byID[s.entries[at].id] = at
	}
	s.entries = s.entries[:last]
	delete(s.byID, id)
	return nil
}

// Reset discards every entry.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.byID = make(map[string]int)
	s.dims = 0
	s.initialized = false
	s.meta = sqlite.VectorFileMeta{}
	return nil
}

// Save writes the store to its file, replacing any previous version.
func (s *Store) Save(ctx context.Context) error {
	s.mu.RLock()
	records := make([]sqlite.VectorRecord, len(s.entries))
	for i, e := range s.entries {
		records[i] = sqlite.VectorRecord{ID: e.id, DocID: e.docID, Text: e.text, Vector: e.unit}
	}
	meta := sqlite.VectorFileMeta{Dimensions: s.dims, Model: s.modelName()}
	s.mu.RUnlock()

	if err := sqlite.WriteVectorFile(ctx, s.path, meta, records); err != nil {
		return fmt.Errorf("saving %s: %w", s.path, err)
	}
	logger.Debug("flat store: saved %d entries to %s", len(records), s.path)
	return nil
}

// Load replaces the store's contents with its file.
func (s *Store) Load(ctx context.Context) error {
	meta, records, err := sqlite.ReadVectorFile(ctx, s.path)
	if err != nil {
		return err
	}

	if model := s.modelName(); model != "" && meta.Model != "" && model != meta.Model {
		logger.Warn("%s was built with model %s, querying with %s: run `refida reindex`", s.path, meta.Model, model)
	}

	entries := make([]entry, len(records))
	byID := make(map[string]int, len(records))
	for i, r := range records {
		entries[i] = entry{id: r.ID, docID: r.DocID, text: r.Text, unit: r.Vector}
		byID[r.ID] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.byID = byID
	s.dims = meta.Dimensions
	s.initialized = len(entries) > 0
	s.meta = meta
	return nil
}

func (s *Store) modelName() string {
	if s.embedder == nil {
		return ""
	}
	return s.embedder.ModelName()
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Info describes the store.
func (s *Store) Info() domain.IndexInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config := map[string]string{
		"dimensions": strconv.Itoa(s.dims),
		"metric":     "cosine",
	}
	if s.meta.Model != "" {
		config["model"] = s.meta.Model
	}
	if s.meta.BuildID != "" {
		config["build_id"] = s.meta.BuildID
	}
	if s.meta.BuiltAt != "" {
		config["built_at"] = s.meta.BuiltAt
	}
	if s.meta.SchemaVersion > 0 {
		config["schema_version"] = strconv.Itoa(s.meta.SchemaVersion)
	}
	return domain.IndexInfo{
		FilePath: s.path,
		Backend:  string(domain.VectorBackendFlat),
		Size:     len(s.entries),
		Config:   config,
	}
}

// Close releases the in-memory entries.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]int)
	return nil
}
