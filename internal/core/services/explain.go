package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// PreviewSeparator joins the sentences of an explanation preview.
const PreviewSeparator = " ... "

// minExplainSentenceLength is the length a re-segmented sentence must
// exceed to be scored by the exact strategy.
const minExplainSentenceLength = 4

// ExplanationFailedWarning is shown in place of a preview when explanation fails.
const ExplanationFailedWarning = "(WARNING: search explanation failed)"

// ExplainerConfig configures an Explainer.
type ExplainerConfig struct {
	Strategy        domain.ExplainStrategy
	MaxSnippets     int
	HighlightBefore string
	HighlightAfter  string
}

// Explainer finds the sentences of a document hit that best match a query.
type Explainer struct {
	config    ExplainerConfig
	documents *DocumentIndex
	sentences *SentenceIndex
	segmenter driven.SentenceSegmenter
}

// NewExplainer creates an explainer. The exact strategy needs documents and
// segmenter; the prebuilt strategy needs sentences.
func NewExplainer(config ExplainerConfig, documents *DocumentIndex, sentences *SentenceIndex, segmenter driven.SentenceSegmenter) *Explainer {
	if !config.Strategy.IsValid() {
		config.Strategy = domain.DefaultExplainStrategy
	}
	if config.MaxSnippets <= 0 {
		config.MaxSnippets = domain.SearchMaxSnippets
	}
	return &Explainer{
		config:    config,
		documents: documents,
		sentences: sentences,
		segmenter: segmenter,
	}
}

// Strategy returns the configured strategy.
func (e *Explainer) Strategy() domain.ExplainStrategy {
	return e.config.Strategy
}

// Explain returns up to limit sentences of the hit, best first, and a
// preview joining them. A non-positive limit uses the configured maximum.
func (e *Explainer) Explain(ctx context.Context, hit domain.Hit, phrase string, limit int) (domain.Explanation, error) {
	if limit <= 0 {
		limit = e.config.MaxSnippets
	}

	var (
		sentences []domain.ScoredSentence
		err       error
	)
	switch e.config.Strategy {
	case domain.ExplainExactSimilarity:
		sentences, err = e.exact(ctx, hit, phrase, limit)
	default:
		sentences, err = e.prebuilt(ctx, hit, phrase, limit)
	}
	if err != nil {
		return domain.Explanation{}, fmt.Errorf("explaining %s: %w", hit.ID, err)
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	return domain.Explanation{
		Preview:   strings.Join(texts, PreviewSeparator),
		Sentences: sentences,
	}, nil
}

// exact re-segments the hit text and scores every sentence against the phrase.
func (e *Explainer) exact(ctx context.Context, hit domain.Hit, phrase string, limit int) ([]domain.ScoredSentence, error) {
	if e.documents == nil || e.segmenter == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	var candidates []string
	for _, s := range e.segmenter.Split(hit.Text) {
		if utf8.RuneCountInString(s) > minExplainSentenceLength {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return []domain.ScoredSentence{}, nil
	}

	scores, err := e.documents.Similarity(ctx, phrase, candidates)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredSentence, 0, min(limit, len(scores)))
	for _, s := range scores {
		out = append(out, domain.ScoredSentence{Text: s.Text, Score: s.Score})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// prebuilt queries the sentence index restricted to the hit's document.
func (e *Explainer) prebuilt(ctx context.Context, hit domain.Hit, phrase string, limit int) ([]domain.ScoredSentence, error) {
	if e.sentences == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	hits, err := e.sentences.SearchSentencesForDoc(ctx, hit.ID, phrase, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredSentence, len(hits))
	for i, h := range hits {
		out[i] = domain.ScoredSentence{Text: h.Text, Score: h.Score}
	}
	return out, nil
}

// Highlight returns the hit text with its best-matching sentence wrapped in
// the highlight delimiters. Lexical hits carry engine highlighting, which is
// returned as is. Without delimiters the plain text is returned.
func (e *Explainer) Highlight(ctx context.Context, hit domain.Hit, phrase string, limit int) (string, error) {
	if hit.Highlighted != "" {
		return hit.Highlighted, nil
	}
	if e.config.HighlightBefore == "" && e.config.HighlightAfter == "" {
		return hit.Text, nil
	}

	explanation, err := e.Explain(ctx, hit, phrase, limit)
	if err != nil {
		return hit.Text, err
	}
	if len(explanation.Sentences) == 0 {
		return hit.Text, nil
	}

	best := explanation.Sentences[0].Text
	highlighted, ok := wrapSentence(hit.Text, best, e.config.HighlightBefore, e.config.HighlightAfter)
	if !ok {
		logger.Debug("best sentence of %s not found in hit text", hit.ID)
		return hit.Text, nil
	}
	return highlighted, nil
}

// wrapSentence wraps every occurrence of sentence in text with the
// delimiters. Segmenters collapse whitespace, so any run of whitespace in the
// text matches a single space between the sentence's words.
func wrapSentence(text, sentence, before, after string) (string, bool) {
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return text, false
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(strings.Join(words, `\s+`))
	if err != nil {
		return text, false
	}
	if !re.MatchString(text) {
		return text, false
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return before + m + after
	}), true
}
