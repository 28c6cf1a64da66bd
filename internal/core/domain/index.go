package domain

import (
	"context"
	"time"
)

// IndexKind identifies one of the persisted indexes.
// The string value is the artifact name under the interim data directory.
type IndexKind string

// Available index kinds.
const (
	// IndexKindDocuments is the document-level vector store.
	IndexKindDocuments IndexKind = "semindex"

	// IndexKindSentences is the sentence-level vector store.
	IndexKindSentences IndexKind = "semindex_sents"

	// IndexKindLexical is the inverted-index lexical store.
	IndexKindLexical IndexKind = "lexindex"
)

// IndexKinds lists every kind in build order.
var IndexKinds = []IndexKind{IndexKindSentences, IndexKindDocuments, IndexKindLexical}

// IsValid returns true if the kind is recognised.
func (k IndexKind) IsValid() bool {
	switch k {
	case IndexKindDocuments, IndexKindSentences, IndexKindLexical:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k IndexKind) String() string {
	return string(k)
}

// IndexInfo reports diagnostics for one index.
type IndexInfo struct {
	// Class is the index implementation (DocumentIndex, SentenceIndex, LexicalIndex).
	Class string `json:"class"`

	// Kind is the index identity.
	Kind IndexKind `json:"kind"`

	// FilePath is the on-disk artifact location.
	FilePath string `json:"filepath"`

	// Backend names the storage engine.
	Backend string `json:"type"`

	// Size is the number of rows or vectors.
	Size int `json:"size"`

	// Built is false when the artifact does not exist yet.
	Built bool `json:"built"`

	// Config holds backend-specific settings and schema details.
	Config map[string]string `json:"config,omitempty"`
}

// ReindexStats summarises one index rebuild.
type ReindexStats struct {
	Kind IndexKind `json:"kind"`

	// Indexed is the number of rows written.
	Indexed int `json:"indexed"`

	// Sentences is the number of sentence entries written (sentence index only).
	Sentences int `json:"sentences,omitempty"`

	// Skipped is the number of rows below the minimum text length.
	Skipped int `json:"skipped"`

	// Failed lists the doc IDs skipped after embedding failures.
	Failed []string `json:"failed,omitempty"`

	Duration time.Duration `json:"duration"`
}

// ReindexReport is the outcome of a full reindex run.
type ReindexReport struct {
	// BuildID uniquely identifies the run; it is recorded in every artifact.
	BuildID string `json:"build_id"`

	Rows  int            `json:"rows"`
	Stats []ReindexStats `json:"stats"`
}

// Progress reports batch progress for one stage of a reindex.
type Progress struct {
	Kind  IndexKind
	Done  int
	Total int
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

type buildIDKey struct{}

// ContextWithBuildID returns a context carrying the reindex build ID.
func ContextWithBuildID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, buildIDKey{}, id)
}

// BuildIDFromContext returns the build ID set by ContextWithBuildID, or "".
func BuildIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(buildIDKey{}).(string)
	return id
}
