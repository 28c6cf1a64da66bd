package domain

import "unicode/utf8"

// MinTextLength is the length a text field must exceed to be indexed.
const MinTextLength = 3

// IDColumn is the dataset column holding the stable document identifier.
const IDColumn = "id"

// Row is one document of the tabular dataset produced by the extraction
// pipeline. It is immutable once read; re-ingestion replaces by ID.
type Row struct {
	// ID is the stable document identifier (derived from the source filename).
	ID string

	// Fields maps column names to their free-text values.
	Fields map[string]string
}

// Text returns the value of the named column, or "" if absent.
func (r Row) Text(column string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[column]
}

// Dataset is the collaborator contract consumed by reindex.
type Dataset struct {
	// Columns lists the header in file order.
	Columns []string

	// Rows holds one entry per document.
	Rows []Row
}

// HasColumn reports whether the dataset header contains the column.
func (d *Dataset) HasColumn(column string) bool {
	for _, c := range d.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// IsIndexable reports whether a text field is long enough to be indexed.
// Length is counted in characters, not bytes.
func IsIndexable(text string) bool {
	return utf8.RuneCountInString(text) > MinTextLength
}
