package sqlite

import (
	"strings"
	"unicode"
)

// ftsOperators are the boolean operators FTS5 accepts between terms.
var ftsOperators = map[string]bool{"AND": true, "OR": true, "NOT": true}

// SanitizeQuery turns a user phrase into an FTS5 MATCH expression.
//
// Every term becomes a quoted FTS5 string with embedded double quotes
// doubled, so apostrophes, hyphens and FTS5 syntax characters are matched
// literally by the tokenizer. Uppercase AND, OR and NOT are kept when they
// sit between two terms and dropped otherwise. Tokens without a letter or
// digit are dropped. Returns "" when nothing searchable is left.
func SanitizeQuery(phrase string) string {
	var (
		out     []string
		pending string
	)
	for _, tok := range strings.Fields(phrase) {
		if ftsOperators[tok] {
			if len(out) > 0 && pending == "" {
				pending = tok
			}
			continue
		}
		if !hasWordChar(tok) {
			continue
		}
		if pending != "" {
			out = append(out, pending)
			pending = ""
		}
		out = append(out, `"`+strings.ReplaceAll(tok, `"`, `""`)+`"`)
	}
	return strings.Join(out, " ")
}

func hasWordChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
