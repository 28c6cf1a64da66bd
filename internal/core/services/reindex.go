package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure ReindexService implements the interface.
var _ driving.ReindexService = (*ReindexService)(nil)

// ReindexService rebuilds every index from the dataset in a fixed order.
type ReindexService struct {
	reader  driven.DatasetReader
	column  string
	indexes []driving.Index

	mu sync.Mutex
}

// NewReindexService creates a reindex service. Indexes are rebuilt in the
// order given; a sentence index that derives document vectors must come
// before anything that reads the document index.
func NewReindexService(reader driven.DatasetReader, column string, indexes ...driving.Index) *ReindexService {
	if column == "" {
		column = domain.DefaultSearchColumn
	}
	return &ReindexService{reader: reader, column: column, indexes: indexes}
}

// Reindex reads the dataset and rebuilds every index from scratch.
// A failed index leaves its previous artifact in place; the run stops
// at the first failure.
func (s *ReindexService) Reindex(ctx context.Context, column string, progress domain.ProgressFunc) (*domain.ReindexReport, error) {
	if !s.mu.TryLock() {
		return nil, domain.ErrReindexInProgress
	}
	defer s.mu.Unlock()

	if column == "" {
		column = s.column
	}

	buildID := uuid.NewString()
	ctx = domain.ContextWithBuildID(ctx, buildID)
	logger.Section("Reindex " + buildID)

	dataset, err := s.reader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	if dataset.Len() > 0 && !dataset.HasColumn(column) {
		return nil, fmt.Errorf("%w: column %q not in dataset %s", domain.ErrInvalidInput, column, s.reader.Path())
	}
	logger.Info("dataset %s: %d rows, column %q", s.reader.Path(), dataset.Len(), column)

	report := &domain.ReindexReport{BuildID: buildID, Rows: dataset.Len()}
	for _, idx := range s.indexes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		stats, err := idx.Reindex(ctx, dataset.Rows, column, progress)
		if err != nil {
			return report, fmt.Errorf("reindex %s: %w", idx.Kind(), err)
		}
		logger.Info("%s: %d indexed, %d skipped, %d failed in %s",
			stats.Kind, stats.Indexed, stats.Skipped, len(stats.Failed), stats.Duration)
		report.Stats = append(report.Stats, stats)
	}
	return report, nil
}
