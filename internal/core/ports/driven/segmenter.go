package driven

// SentenceSegmenter splits text into sentences.
type SentenceSegmenter interface {
	// Split returns the sentences of text in order, trimmed, with empty
	// sentences removed.
	Split(text string) []string
}
