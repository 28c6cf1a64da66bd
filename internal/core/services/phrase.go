package services

import (
	"regexp"
	"strings"
)

var (
	booleanOperators = regexp.MustCompile(`\b(OR|AND|NOT)\b`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// quoteChars are removed from semantic phrases.
const quoteChars = "\"'`‘’“”"

// CleanSemanticPhrase prepares a phrase for embedding: uppercase boolean
// operators and quote characters are dropped and whitespace is collapsed.
// Lowercase "or", "and" and "not" are ordinary words and are kept.
func CleanSemanticPhrase(phrase string) string {
	ret := booleanOperators.ReplaceAllString(phrase, "")
	ret = strings.Map(func(r rune) rune {
		if strings.ContainsRune(quoteChars, r) {
			return -1
		}
		return r
	}, ret)
	ret = whitespaceRuns.ReplaceAllString(ret, " ")
	return strings.TrimSpace(ret)
}
