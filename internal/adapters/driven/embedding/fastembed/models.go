// Package fastembed provides an embedding service that runs sentence
// transformer models locally through ONNX Runtime. It requires cgo; builds
// without cgo get a stub that reports the provider as unavailable.
package fastembed

import (
	"errors"
	"path/filepath"
)

// ErrNotAvailable is returned when the binary was built without cgo.
var ErrNotAvailable = errors.New("fastembed: not available (binary built without cgo, use the ollama, openai or hashing provider)")

// Default configuration values.
const (
	DefaultModel     = "all-MiniLM-L6-v2"
	DefaultMaxLength = 512
	DefaultBatchSize = 64
)

// Config holds configuration for the FastEmbed embedding service.
type Config struct {
	// Model is the model name (default: all-MiniLM-L6-v2).
	Model string

	// CacheDir is where model files are downloaded.
	CacheDir string

	// MaxLength is the maximum input sequence length.
	MaxLength int

	// BatchSize is the number of texts per inference call.
	BatchSize int
}

// modelDimensions lists the supported models by their accepted names.
var modelDimensions = map[string]int{
	"all-MiniLM-L6-v2":                       384,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-all-MiniLM-L6-v2":                  384,
	"bge-small-en-v1.5":                      384,
	"BAAI/bge-small-en-v1.5":                 384,
	"fast-bge-small-en-v1.5":                 384,
	"bge-base-en-v1.5":                       768,
	"BAAI/bge-base-en-v1.5":                  768,
	"fast-bge-base-en-v1.5":                  768,
}

// ModelDimensions returns the vector size of a supported model.
func ModelDimensions(model string) (int, bool) {
	d, ok := modelDimensions[model]
	return d, ok
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(".", "local_cache")
	}
	if c.MaxLength <= 0 {
		c.MaxLength = DefaultMaxLength
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}
