// Package csvfile reads the extraction pipeline's dataset from a CSV file
// with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure Reader implements the interface.
var _ driven.DatasetReader = (*Reader)(nil)

// DefaultFile is the dataset location relative to the data directory.
var DefaultFile = filepath.Join("1_interim", "etl.csv")

// Reader reads a CSV dataset.
type Reader struct {
	path string
}

// New creates a reader for the CSV file at path.
func New(path string) *Reader {
	return &Reader{path: path}
}

// NewDefault creates a reader for dataDir/1_interim/etl.csv.
func NewDefault(dataDir string) *Reader {
	return New(filepath.Join(dataDir, DefaultFile))
}

// Path returns the dataset file path.
func (r *Reader) Path() string {
	return r.path
}

// Read parses the whole file. Rows without an id are skipped; a repeated id
// replaces the earlier row in place.
func (r *Reader) Read(ctx context.Context) (*domain.Dataset, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, r.path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	return parse(ctx, f, r.path)
}

func parse(ctx context.Context, in io.Reader, name string) (*domain.Dataset, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &domain.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	idAt := -1
	for i, c := range header {
		if c == domain.IDColumn {
			idAt = i
			break
		}
	}
	if idAt < 0 {
		return nil, fmt.Errorf("%w: %s has no %q column", domain.ErrInvalidInput, name, domain.IDColumn)
	}

	ds := &domain.Dataset{Columns: header}
	seen := make(map[string]int)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		id := ""
		if idAt < len(record) {
			id = strings.TrimSpace(record[idAt])
		}
		if id == "" {
			logger.Warn("%s line %d: row without %s skipped", name, line, domain.IDColumn)
			continue
		}

		fields := make(map[string]string, len(header))
		for i, c := range header {
			if i < len(record) {
				fields[c] = record[i]
			} else {
				fields[c] = ""
			}
		}
		row := domain.Row{ID: id, Fields: fields}

		if at, ok := seen[id]; ok {
			logger.Debug("%s line %d: duplicate id %s replaces earlier row", name, line, id)
			ds.Rows[at] = row
			continue
		}
		seen[id] = len(ds.Rows)
		ds.Rows = append(ds.Rows, row)
	}

	logger.Debug("dataset %s: %d rows, columns %v", name, len(ds.Rows), header)
	return ds, nil
}
