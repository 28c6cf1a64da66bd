// Package chromem provides a vector store backed by a chromem-go persistent
// database directory.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/vector"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const (
	// collectionName is the single collection of every index directory.
	collectionName = "entries"
	metaDocID      = "doc_id"
	metaFile       = "refida.json"
)

// indexMeta is written next to the collection.
type indexMeta struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	BuildID    string `json:"build_id,omitempty"`
	BuiltAt    string `json:"built_at"`
}

// Store is a chromem-go backed vector store.
//
// A store is either loaded from its directory or being built: Reset starts a
// build in a sibling directory that Save swaps in place of the old one.
// Entries written to a loaded store go straight to its directory.
type Store struct {
	path     string
	compress bool
	embedder driven.EmbeddingService

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	buildDir   string
	dims       int
	meta       indexMeta
}

// New creates a store for the directory at path.
func New(path string, embedder driven.EmbeddingService, compress bool) *Store {
	return &Store{path: path, embedder: embedder, compress: compress}
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if s.embedder == nil {
			return nil, domain.ErrEmbeddingUnavailable
		}
		return s.embedder.Embed(ctx, text)
	}
}

// Reset starts a fresh build. Nothing changes on disk at path until Save.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discardBuild()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	dir, err := os.MkdirTemp(filepath.Dir(s.path), filepath.Base(s.path)+".build-*")
	if err != nil {
		return fmt.Errorf("creating build directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(dir, s.compress)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("opening chromem db: %w", err)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, s.embeddingFunc())
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("creating collection: %w", err)
	}

	s.db = db
	s.collection = collection
	s.buildDir = dir
	s.dims = 0
	s.meta = indexMeta{}
	return nil
}

func (s *Store) discardBuild() {
	if s.buildDir != "" {
		_ = os.RemoveAll(s.buildDir)
		s.buildDir = ""
	}
	s.db = nil
	s.collection = nil
}

func (s *Store) current() (*chromem.Collection, error) {
	if s.collection == nil {
		return nil, fmt.Errorf("%w: %s not loaded", domain.ErrIndexNotFound, s.path)
	}
	return s.collection, nil
}

// Upsert adds entries, replacing existing IDs.
func (s *Store) Upsert(ctx context.Context, entries []driven.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	embedded, err := vector.EmbedMissing(ctx, s.embedder, entries)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.current()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(embedded))
	dims := s.dims
	for i, e := range embedded {
		unit, err := vector.Normalize(e.Vector)
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
		if dims == 0 {
			dims = len(unit)
		}
		if len(unit) != dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, store has %d", domain.ErrInvalidInput, e.ID, len(unit), dims)
		}
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Text,
			Metadata:  map[string]string{metaDocID: e.DocID},
			Embedding: unit,
		}
	}

	// Concurrency of 1 since the embeddings are already computed.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	s.dims = dims
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
func (s *Store) SearchVector(ctx context.Context, query []float32, limit int, filter domain.Filter) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collection, err := s.current()
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= doc count
	count := collection.Count()
	if count == 0 || limit <= 0 {
		return []driven.VectorHit{}, nil
	}
	limit = min(limit, count)

	q, err := vector.Normalize(query)
	if err != nil {
		return nil, err
	}
	if s.dims > 0 && len(q) != s.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", domain.ErrInvalidInput, len(q), s.dims)
	}

	var where map[string]string
	if !filter.IsEmpty() {
		where = map[string]string{metaDocID: filter.DocID}
	}

	results, err := collection.QueryEmbedding(ctx, q, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]driven.VectorHit, len(results))
	for i, r := range results {
		hits[i] = driven.VectorHit{
			ID:    r.ID,
			Text:  r.Content,
			DocID: r.Metadata[metaDocID],
			Score: float64(r.Similarity),
		}
	}
	// chromem scores documents concurrently, so equal scores arrive in any order.
	vector.SortHits(hits)
	return hits, nil
}

// Similarity scores texts against the query with the store's embedder.
func (s *Store) Similarity(ctx context.Context, query string, texts []string) ([]driven.TextScore, error) {
	return vector.ScoreTexts(ctx, s.embedder, query, texts)
}

// Delete removes an entry.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection, err := s.current()
	if err != nil {
		return err
	}
	if err := collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	return nil
}

// Save swaps the build directory in place of the index directory. Saving a
// loaded store only refreshes its metadata.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.current(); err != nil {
		return err
	}

	meta := indexMeta{
		Dimensions: s.dims,
		BuildID:    domain.BuildIDFromContext(ctx),
		BuiltAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.embedder != nil {
		meta.Model = s.embedder.ModelName()
	}

	dir := s.path
	if s.buildDir != "" {
		dir = s.buildDir
	}
	if err := writeMeta(dir, meta); err != nil {
		return err
	}
	s.meta = meta

	if s.buildDir == "" {
		return nil
	}
	if err := swapDir(s.buildDir, s.path); err != nil {
		return err
	}
	s.buildDir = ""

	// Reopen at the stable path so later writes land there.
	db, err := chromem.NewPersistentDB(s.path, s.compress)
	if err != nil {
		return fmt.Errorf("reopening %s: %w", s.path, err)
	}
	collection := db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		return fmt.Errorf("reopening %s: collection %s missing", s.path, collectionName)
	}
	s.db = db
	s.collection = collection
	logger.Debug("chromem store: saved %d entries to %s", collection.Count(), s.path)
	return nil
}

// swapDir replaces target with dir. The old target is moved aside first and
// removed once the new one is in place.
func swapDir(dir, target string) error {
	old := target + ".old"
	_ = os.RemoveAll(old)

	hadOld := true
	if err := os.Rename(target, old); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("moving %s aside: %w", target, err)
		}
		hadOld = false
	}
	if err := os.Rename(dir, target); err != nil {
		if hadOld {
			_ = os.Rename(old, target)
		}
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	if hadOld {
		_ = os.RemoveAll(old)
	}
	return nil
}

// Load opens the index directory.
func (s *Store) Load(_ context.Context) error {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrIndexNotFound, s.path)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", s.path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a chromem index directory", s.path)
	}

	meta, err := readMeta(s.path)
	if err != nil {
		return err
	}
	if s.embedder != nil && meta.Model != "" && meta.Model != s.embedder.ModelName() {
		logger.Warn("%s was built with model %s, querying with %s: run `refida reindex`", s.path, meta.Model, s.embedder.ModelName())
	}

	db, err := chromem.NewPersistentDB(s.path, s.compress)
	if err != nil {
		return fmt.Errorf("opening chromem db: %w", err)
	}
	collection := db.GetCollection(collectionName, s.embeddingFunc())
	if collection == nil {
		return fmt.Errorf("%s has no %s collection", s.path, collectionName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardBuild()
	s.db = db
	s.collection = collection
	s.dims = meta.Dimensions
	s.meta = meta
	return nil
}

func writeMeta(dir string, meta indexMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

func readMeta(dir string) (indexMeta, error) {
	var meta indexMeta
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if errors.Is(err, fs.ErrNotExist) {
		return meta, fmt.Errorf("%w: %s has no %s", domain.ErrIndexNotFound, dir, metaFile)
	}
	if err != nil {
		return meta, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decoding metadata: %w", err)
	}
	return meta, nil
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

// Info describes the store.
func (s *Store) Info() domain.IndexInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	config := map[string]string{
		"collection": collectionName,
		"dimensions": strconv.Itoa(s.dims),
		"compress":   strconv.FormatBool(s.compress),
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

	size := 0
	if s.collection != nil {
		size = s.collection.Count()
	}
	return domain.IndexInfo{
		FilePath: s.path,
		Backend:  string(domain.VectorBackendChromem),
		Size:     size,
		Config:   config,
	}
}

// Close drops the database handle and any unsaved build.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardBuild()
	return nil
}
