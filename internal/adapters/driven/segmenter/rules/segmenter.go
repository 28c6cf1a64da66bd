// Package rules provides a rule-based sentence segmenter for English prose.
//
// A sentence ends at '.', '!' or '?' (with any closing quotes or brackets)
// when followed by whitespace and a capital letter, digit or opening quote,
// unless the word before the period is a known abbreviation or an initial.
// A blank line always ends a sentence.
package rules

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// Ensure Segmenter implements the interface.
var _ driven.SentenceSegmenter = (*Segmenter)(nil)

// defaultAbbreviations are lowercase, without the trailing period.
var defaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "rev", "hon",
	"e.g", "i.e", "etc", "vs", "cf", "al", "approx", "ca", "c",
	"fig", "figs", "no", "nos", "vol", "vols", "p", "pp", "ch", "ed", "eds",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"inc", "ltd", "co", "corp", "dept", "univ",
}

// Segmenter splits text into sentences.
type Segmenter struct {
	abbreviations map[string]struct{}
}

// New creates a segmenter. Extra abbreviations are added to the defaults.
func New(extra ...string) *Segmenter {
	abbr := make(map[string]struct{}, len(defaultAbbreviations)+len(extra))
	for _, a := range defaultAbbreviations {
		abbr[a] = struct{}{}
	}
	for _, a := range extra {
		abbr[strings.TrimSuffix(strings.ToLower(a), ".")] = struct{}{}
	}
	return &Segmenter{abbreviations: abbr}
}

// Split returns the trimmed, non-empty sentences of text in order.
func (s *Segmenter) Split(text string) []string {
	var (
		sentences []string
		start     int
	)
	emit := func(end int) {
		if sentence := collapseSpace(text[start:end]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		if r == '\n' && blankLineAt(text, i) {
			emit(i)
			i += size
			continue
		}

		if r != '.' && r != '!' && r != '?' {
			i += size
			continue
		}

		end := i + size
		// Absorb runs like "?!" or "..." and closing punctuation.
		for end < len(text) {
			next, n := utf8.DecodeRuneInString(text[end:])
			if next == '.' || next == '!' || next == '?' || isCloser(next) {
				end += n
				continue
			}
			break
		}

		if s.endsSentence(text, i, end, r) {
			emit(end)
		}
		i = end
	}
	emit(len(text))
	return sentences
}

// endsSentence decides whether the terminator at text[at] closing at end
// is a sentence boundary.
func (s *Segmenter) endsSentence(text string, at, end int, term rune) bool {
	if end == len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	if !unicode.IsSpace(next) {
		// "3.14", "e.g.," and URLs.
		return false
	}

	following := strings.TrimLeftFunc(text[end:], unicode.IsSpace)
	if following == "" {
		return true
	}
	first, _ := utf8.DecodeRuneInString(following)
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) && !isOpener(first) {
		return false
	}

	if term == '.' {
		word := wordBefore(text, at)
		if _, ok := s.abbreviations[strings.ToLower(word)]; ok {
			return false
		}
		// Initials such as "J. Smith".
		if n := utf8.RuneCountInString(word); n == 1 {
			r, _ := utf8.DecodeRuneInString(word)
			if unicode.IsUpper(r) {
				return false
			}
		}
	}
	return true
}

// wordBefore returns the run of letters and inner periods ending at text[at].
func wordBefore(text string, at int) string {
	start := at
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	return strings.Trim(text[start:at], ".")
}

// blankLineAt reports whether the newline at text[i] is followed by only
// whitespace up to another newline.
func blankLineAt(text string, i int) bool {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

func isOpener(r rune) bool {
	switch r {
	case '"', '\'', '(', '[', '“', '‘':
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
