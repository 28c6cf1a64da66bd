package domain

// ExplainStrategy selects how a document hit is explained by its sentences.
type ExplainStrategy string

// Available explanation strategies.
const (
	// ExplainExactSimilarity re-segments the hit text and scores every
	// sentence against the query. Accurate but costs one embedding per
	// sentence per hit.
	ExplainExactSimilarity ExplainStrategy = "exact-sentence-similarity"

	// ExplainPrebuiltIndex queries the sentence index restricted to the
	// hit's document. Fast, approximate when the sentence index is stale.
	ExplainPrebuiltIndex ExplainStrategy = "prebuilt-sentence-index"
)

// DefaultExplainStrategy is used when none is configured.
const DefaultExplainStrategy = ExplainPrebuiltIndex

// IsValid returns true if the strategy is recognised.
func (s ExplainStrategy) IsValid() bool {
	return s == ExplainExactSimilarity || s == ExplainPrebuiltIndex
}

// String returns the string representation.
func (s ExplainStrategy) String() string {
	return string(s)
}

// Description returns a human-readable description of the strategy.
func (s ExplainStrategy) Description() string {
	switch s {
	case ExplainExactSimilarity:
		return "Exact (re-embed every sentence of each hit)"
	case ExplainPrebuiltIndex:
		return "Prebuilt (query the sentence index)"
	default:
		return unknownDescription
	}
}

// AllExplainStrategies returns all available strategies.
func AllExplainStrategies() []ExplainStrategy {
	return []ExplainStrategy{ExplainPrebuiltIndex, ExplainExactSimilarity}
}
