package driven

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

// DatasetReader reads the tabular dataset produced by the extraction pipeline.
type DatasetReader interface {
	// Read returns every row. Returns domain.ErrDatasetNotFound if the
	// dataset does not exist.
	Read(ctx context.Context) (*domain.Dataset, error)

	// Path returns the dataset location.
	Path() string
}

// DatasetWatcher reports changes to the dataset file.
type DatasetWatcher interface {
	// Run calls onChange after each burst of changes until ctx is done.
	Run(ctx context.Context, onChange func(ctx context.Context)) error

	// Path returns the watched dataset location.
	Path() string

	Close() error
}
