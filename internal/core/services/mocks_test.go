package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// conceptEmbedder maps words to a handful of concept axes so that related
// words ("cat", "feline") land near each other.
type conceptEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

var conceptAxes = map[string]int{
	"cat": 0, "cats": 0, "feline": 0, "kitten": 0, "mat": 0, "pet": 0,
	"dog": 1, "dogs": 1, "canine": 1, "loyal": 1, "companions": 1, "puppy": 1,
	"lab": 2, "laboratory": 2, "research": 2, "king's": 2,
}

const conceptDims = 4

// vector is all zeros for a text without letters or digits, as the hashing
// embedder produces for a lone bullet.
func (e *conceptEmbedder) vector(text string) []float32 {
	v := make([]float32, conceptDims)
	if strings.IndexFunc(text, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return v
	}
	v[conceptDims-1] = 0.1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"")
		if axis, ok := conceptAxes[w]; ok {
			v[axis]++
		}
	}
	return v
}

func (e *conceptEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *conceptEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.failOn != "" && strings.Contains(t, e.failOn) {
			return nil, fmt.Errorf("%w: provider exploded", domain.ErrEmbeddingFailed)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *conceptEmbedder) Dimensions() int              { return conceptDims }
func (e *conceptEmbedder) ModelName() string            { return "concepts" }
func (e *conceptEmbedder) Ping(_ context.Context) error { return nil }
func (e *conceptEmbedder) Close() error                 { return nil }

// periodSegmenter splits on ". ".
type periodSegmenter struct{}

func (periodSegmenter) Split(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type storedEntry struct {
	entry driven.VectorEntry
	raw   []float32
	unit  []float32
}

// memVectorStore is an exact in-memory vector store saving to memFactory.disk.
type memVectorStore struct {
	kind     domain.IndexKind
	factory  *memFactory
	embedder driven.EmbeddingService
	entries  map[string]storedEntry
	order    []string
	closed   bool
}

func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func (s *memVectorStore) Upsert(ctx context.Context, entries []driven.VectorEntry) error {
	var missing []string
	for _, e := range entries {
		if e.Vector == nil {
			missing = append(missing, e.Text)
		}
	}
	var computed [][]float32
	if len(missing) > 0 {
		var err error
		computed, err = s.embedder.EmbedBatch(ctx, missing)
		if err != nil {
			return err
		}
	}
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		v := e.Vector
		if v == nil {
			v, computed = computed[0], computed[1:]
		}
		if isDegenerate(v) {
			return fmt.Errorf("entry %s: %w: zero vector", e.ID, domain.ErrInvalidInput)
		}
		vectors[i] = v
	}
	for i, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			s.order = append(s.order, e.ID)
		}
		raw := append([]float32(nil), vectors[i]...)
		s.entries[e.ID] = storedEntry{entry: e, raw: raw, unit: normalise(vectors[i])}
	}
	return nil
}

func (s *memVectorStore) Search(ctx context.Context, query string, limit int, filter domain.Filter) ([]driven.VectorHit, error) {
	v, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.SearchVector(ctx, v, limit, filter)
}

func (s *memVectorStore) SearchVector(_ context.Context, vector []float32, limit int, filter domain.Filter) ([]driven.VectorHit, error) {
	q := normalise(vector)
	var hits []driven.VectorHit
	for _, id := range s.order {
		e := s.entries[id]
		if !filter.Matches(e.entry.DocID) {
			continue
		}
		hits = append(hits, driven.VectorHit{ID: id, Text: e.entry.Text, DocID: e.entry.DocID, Score: dot(q, e.unit)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *memVectorStore) Similarity(ctx context.Context, query string, texts []string) ([]driven.TextScore, error) {
	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	vs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]driven.TextScore, len(texts))
	for i := range texts {
		out[i] = driven.TextScore{Index: i, Text: texts[i], Score: dot(normalise(q), normalise(vs[i]))}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *memVectorStore) Delete(_ context.Context, id string) error {
	delete(s.entries, id)
	return nil
}

func (s *memVectorStore) Reset(_ context.Context) error {
	s.entries = make(map[string]storedEntry)
	s.order = nil
	return nil
}

func (s *memVectorStore) Save(_ context.Context) error {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	if s.factory.failSave[s.kind] {
		return errors.New("disk full")
	}
	snapshot := &memVectorStore{entries: make(map[string]storedEntry), order: append([]string(nil), s.order...)}
	for k, v := range s.entries {
		snapshot.entries[k] = v
	}
	s.factory.vectors[s.kind] = snapshot
	s.factory.saves[s.kind]++
	return nil
}

func (s *memVectorStore) Load(_ context.Context) error {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	s.factory.loads[s.kind]++
	saved, ok := s.factory.vectors[s.kind]
	if !ok {
		return domain.ErrIndexNotFound
	}
	s.entries = saved.entries
	s.order = saved.order
	return nil
}

func (s *memVectorStore) Count() int { return len(s.entries) }

func (s *memVectorStore) Info() domain.IndexInfo {
	return domain.IndexInfo{FilePath: s.factory.Path(s.kind), Backend: "memory", Size: len(s.entries)}
}

func (s *memVectorStore) Close() error {
	s.closed = true
	return nil
}

// memLexicalStore matches rows containing every lowercase term.
type memLexicalStore struct {
	factory *memFactory
	rows    []driven.LexicalRow
}

func (s *memLexicalStore) Reindex(_ context.Context, rows []driven.LexicalRow) error {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	s.factory.lexical = append([]driven.LexicalRow{}, rows...)
	s.factory.saves[domain.IndexKindLexical]++
	return nil
}

func (s *memLexicalStore) Open(_ context.Context) error {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()
	s.factory.loads[domain.IndexKindLexical]++
	if s.factory.lexical == nil {
		return domain.ErrIndexNotFound
	}
	s.rows = s.factory.lexical
	return nil
}

func (s *memLexicalStore) SearchPhrase(_ context.Context, phrase string, limit int) ([]driven.LexicalHit, error) {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(phrase)) {
		if t = strings.Trim(t, `"'*-.,;:!?()`); t != "" && t != "and" && t != "or" && t != "not" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil, domain.ErrMalformedQuery
	}
	var hits []driven.LexicalHit
	for _, r := range s.rows {
		text := strings.ToLower(r.Text)
		all := true
		for _, t := range terms {
			if !strings.Contains(text, t) {
				all = false
				break
			}
		}
		if all {
			hits = append(hits, driven.LexicalHit{ID: r.ID, Text: r.Text, Score: 0.5})
		}
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (s *memLexicalStore) Count(_ context.Context) (int, error) { return len(s.rows), nil }

func (s *memLexicalStore) Info(_ context.Context) domain.IndexInfo {
	return domain.IndexInfo{FilePath: s.factory.Path(domain.IndexKindLexical), Backend: "memory", Size: len(s.rows)}
}

func (s *memLexicalStore) Close() error { return nil }

// memFactory hands out memory stores sharing a fake disk.
type memFactory struct {
	mu       sync.Mutex
	embedder driven.EmbeddingService
	vectors  map[domain.IndexKind]*memVectorStore
	lexical  []driven.LexicalRow
	saves    map[domain.IndexKind]int
	loads    map[domain.IndexKind]int
	failSave map[domain.IndexKind]bool
	opened   []*memVectorStore
}

func newMemFactory(embedder driven.EmbeddingService) *memFactory {
	return &memFactory{
		embedder: embedder,
		vectors:  make(map[domain.IndexKind]*memVectorStore),
		saves:    make(map[domain.IndexKind]int),
		loads:    make(map[domain.IndexKind]int),
		failSave: make(map[domain.IndexKind]bool),
	}
}

func (f *memFactory) NewVectorStore(kind domain.IndexKind) (driven.VectorStore, error) {
	if kind == domain.IndexKindLexical {
		return nil, domain.ErrUnsupportedType
	}
	s := &memVectorStore{kind: kind, factory: f, embedder: f.embedder, entries: make(map[string]storedEntry)}
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()
	return s, nil
}

func (f *memFactory) NewLexicalStore() (driven.LexicalStore, error) {
	return &memLexicalStore{factory: f}, nil
}

func (f *memFactory) Path(kind domain.IndexKind) string {
	return "/data/1_interim/" + string(kind)
}

// saved returns the persisted entry for id in a vector index.
func (f *memFactory) saved(kind domain.IndexKind, id string) (storedEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.vectors[kind]
	if !ok {
		return storedEntry{}, false
	}
	e, ok := s.entries[id]
	return e, ok
}

type staticDataset struct {
	dataset *domain.Dataset
	err     error
}

func (d *staticDataset) Read(_ context.Context) (*domain.Dataset, error) {
	return d.dataset, d.err
}

func (d *staticDataset) Path() string { return "/data/1_interim/etl.csv" }

func textRows(pairs ...string) []domain.Row {
	rows := make([]domain.Row, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rows = append(rows, domain.Row{ID: pairs[i], Fields: map[string]string{"text": pairs[i+1]}})
	}
	return rows
}

func catDogRows() []domain.Row {
	return textRows("A", "the cat sat on the mat", "B", "dogs are loyal companions")
}

// recordingIndex is a driving.Index that records calls.
type recordingIndex struct {
	kind    domain.IndexKind
	hits    []domain.Hit
	err     error
	calls   *[]string
	lastOpt domain.SearchOptions
	buildID string
}

func (r *recordingIndex) Kind() domain.IndexKind { return r.kind }

func (r *recordingIndex) Reindex(ctx context.Context, rows []domain.Row, _ string, _ domain.ProgressFunc) (domain.ReindexStats, error) {
	if r.calls != nil {
		*r.calls = append(*r.calls, string(r.kind))
	}
	r.buildID = domain.BuildIDFromContext(ctx)
	return domain.ReindexStats{Kind: r.kind, Indexed: len(rows)}, r.err
}

func (r *recordingIndex) SearchPhrase(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.Hit, error) {
	r.lastOpt = opts
	if r.err != nil {
		return nil, r.err
	}
	if len(r.hits) > opts.Limit {
		return r.hits[:opts.Limit], nil
	}
	return r.hits, nil
}

func (r *recordingIndex) Info(_ context.Context) domain.IndexInfo {
	return domain.IndexInfo{Kind: r.kind, Built: true}
}
