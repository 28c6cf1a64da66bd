// Package ai provides factory functions for creating embedding service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/kingsdigitallab/refida/internal/adapters/driven/embedding/fastembed"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/kingsdigitallab/refida/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/kingsdigitallab/refida/internal/adapters/driven/embedding/openai"
	"github.com/kingsdigitallab/refida/internal/adapters/driven/embedding/resilient"
	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Options holds settings that do not live in the config file.
type Options struct {
	// ModelCacheDir is where local models are downloaded.
	ModelCacheDir string
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings, opts Options) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'refida settings set embedding.provider hashing' to work offline",
			domain.ErrEmbeddingUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'refida settings show' to check the embedding settings",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// This is intended for use by `refida settings set` to validate credentials on configuration.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	// Loading a local model only to ping it would download it.
	if settings.Provider == domain.EmbeddingProviderFastEmbed {
		_, ok := fastembed.ModelDimensions(settings.Model)
		if !ok {
			return fmt.Errorf("%w: fastembed model %q", domain.ErrUnsupportedType, settings.Model)
		}
		return nil
	}

	svc, err := CreateEmbeddingService(settings, Options{})
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the embedding service selected by settings,
// wrapped with the configured timeout, retry and rate limit policy.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings, opts Options) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.EmbeddingProviderHashing:
		svc = createHashingEmbedding(settings)

	case domain.EmbeddingProviderOllama:
		svc = createOllamaEmbedding(settings)

	case domain.EmbeddingProviderOpenAI:
		svc, err = createOpenAIEmbedding(settings)

	case domain.EmbeddingProviderFastEmbed:
		svc, err = createFastEmbedEmbedding(settings, opts)

	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
	if err != nil {
		return nil, err
	}

	return resilient.New(svc, resilient.Config{
		Timeout:       time.Duration(settings.TimeoutSeconds) * time.Second,
		MaxRetries:    settings.MaxRetries,
		RatePerSecond: settings.RatePerSecond,
	}), nil
}

// createHashingEmbedding creates the offline hashing embedder.
func createHashingEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return hashing.NewEmbeddingService(domain.EmbeddingDimensions()[settings.Model])
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    time.Duration(settings.TimeoutSeconds) * time.Second,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := domain.EmbeddingDimensions()[settings.Model]

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    time.Duration(settings.TimeoutSeconds) * time.Second,
		Dimensions: dimensions,
	})
}

// createFastEmbedEmbedding loads a local ONNX model.
func createFastEmbedEmbedding(settings *domain.EmbeddingSettings, opts Options) (driven.EmbeddingService, error) {
	return fastembed.NewEmbeddingService(fastembed.Config{
		Model:    settings.Model,
		CacheDir: opts.ModelCacheDir,
	})
}
