package domain

const unknownDescription = "Unknown"

// Search defaults.
const (
	// SearchMinScore is the default acceptance threshold for semantic matches.
	SearchMinScore = 0.15

	// SearchMaxSnippets is the default number of sentences in a preview.
	SearchMaxSnippets = 2

	// DefaultSearchLimit is the default number of hits per page.
	DefaultSearchLimit = 20

	// DefaultSearchColumn is the dataset column indexed by default.
	DefaultSearchColumn = "text"
)

// SearchLimitOptions are the page sizes offered to interactive users.
var SearchLimitOptions = []int{10, 20, 50, 100, 500}

// SearchMode selects which index answers a query.
type SearchMode string

// Available search modes.
const (
	// SearchModeSemanticDocs ranks documents by their whole-document embedding.
	SearchModeSemanticDocs SearchMode = "semantic-docs"

	// SearchModeSemanticSentences ranks documents by their best-matching sentence.
	SearchModeSemanticSentences SearchMode = "semantic-sentences"

	// SearchModeLexical uses the BM25 inverted index.
	SearchModeLexical SearchMode = "lexical"
)

// SearchModes lists every mode in display order.
var SearchModes = []SearchMode{SearchModeSemanticDocs, SearchModeSemanticSentences, SearchModeLexical}

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeSemanticDocs, SearchModeSemanticSentences, SearchModeLexical:
		return true
	default:
		return false
	}
}

// IsSemantic returns true if the mode needs an embedding provider.
func (m SearchMode) IsSemantic() bool {
	return m == SearchModeSemanticDocs || m == SearchModeSemanticSentences
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeSemanticDocs:
		return "Semantic (documents)"
	case SearchModeSemanticSentences:
		return "Semantic (sentences)"
	case SearchModeLexical:
		return "Lexical"
	default:
		return unknownDescription
	}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results. Zero uses the configured default.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// MinScore drops semantic hits scoring below it. Zero disables the filter.
	// Ignored by the lexical index.
	MinScore float64
}

// Filter restricts a vector search to entries whose metadata matches.
// The zero value matches everything.
type Filter struct {
	// DocID restricts results to sentences of one document.
	DocID string
}

// IsEmpty returns true if the filter matches every entry.
func (f Filter) IsEmpty() bool {
	return f.DocID == ""
}

// Matches reports whether an entry with the given parent document passes.
func (f Filter) Matches(docID string) bool {
	return f.DocID == "" || f.DocID == docID
}

// Hit represents a single search result from any index.
type Hit struct {
	// ID is the document identifier.
	ID string `json:"id"`

	// Text is the matched text: the document text, or the best sentence
	// for sentence-ranked hits.
	Text string `json:"text"`

	// Score is the relevance score. Cosine similarity for semantic hits,
	// a BM25-derived value in (0,1) for lexical hits.
	Score float64 `json:"score"`

	// SentenceID identifies the best sentence for sentence-ranked hits.
	SentenceID string `json:"sentence_id,omitempty"`

	// Highlighted is the engine-highlighted text for lexical hits, when
	// highlight delimiters are configured.
	Highlighted string `json:"highlighted,omitempty"`
}

// ScoredSentence is a sentence with its similarity to a query.
type ScoredSentence struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Explanation describes why a document matched a query.
type Explanation struct {
	// Preview is the top sentences joined with ellipses.
	Preview string `json:"preview"`

	// Sentences are the highest-scoring sentences, best first.
	Sentences []ScoredSentence `json:"sentences,omitempty"`

	// Warning is set when explanation generation failed for this hit.
	Warning string `json:"warning,omitempty"`
}
