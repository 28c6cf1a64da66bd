package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyDataDir           = "data.dir"
	KeySearchColumn      = "search.column"
	KeySearchLimit       = "search.limit"
	KeySearchMinScore    = "search.min_score"
	KeySearchMaxSnippets = "search.max_snippets"
	KeyExplainStrategy   = "search.explain_strategy"
	KeyHighlightBefore   = "search.highlight_before"
	KeyHighlightAfter    = "search.highlight_after"
	KeyEmbedProvider     = "embedding.provider"
	KeyEmbedModel        = "embedding.model"
	KeyEmbedBaseURL      = "embedding.base_url"
	KeyEmbedAPIKey       = "embedding.api_key"
	KeyEmbedTimeout      = "embedding.timeout_seconds"
	KeyEmbedMaxRetries   = "embedding.max_retries"
	KeyEmbedRate         = "embedding.rate_per_second"
	KeyVectorBackend     = "vector.backend"
)

var settingKeys = []string{
	KeyDataDir,
	KeySearchColumn, KeySearchLimit, KeySearchMinScore, KeySearchMaxSnippets,
	KeyExplainStrategy, KeyHighlightBefore, KeyHighlightAfter,
	KeyEmbedProvider, KeyEmbedModel, KeyEmbedBaseURL, KeyEmbedAPIKey,
	KeyEmbedTimeout, KeyEmbedMaxRetries, KeyEmbedRate,
	KeyVectorBackend,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	provider := s.getProvider(defaults.Embedding.Provider)
	model := s.configStore.GetString(KeyEmbedModel)
	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	settings := &domain.AppSettings{
		DataDir: s.getString(KeyDataDir, defaults.DataDir),
		Search: domain.SearchSettings{
			Column:          s.getString(KeySearchColumn, defaults.Search.Column),
			Limit:           s.getInt(KeySearchLimit, defaults.Search.Limit),
			MinScore:        s.getFloat(KeySearchMinScore, defaults.Search.MinScore),
			MaxSnippets:     s.getInt(KeySearchMaxSnippets, defaults.Search.MaxSnippets),
			ExplainStrategy: s.getExplainStrategy(defaults.Search.ExplainStrategy),
			HighlightBefore: s.configStore.GetString(KeyHighlightBefore),
			HighlightAfter:  s.configStore.GetString(KeyHighlightAfter),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:       provider,
			Model:          model,
			BaseURL:        s.configStore.GetString(KeyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:         s.configStore.GetString(KeyEmbedAPIKey),
			TimeoutSeconds: s.getInt(KeyEmbedTimeout, defaults.Embedding.TimeoutSeconds),
			MaxRetries:     s.getInt(KeyEmbedMaxRetries, defaults.Embedding.MaxRetries),
			RatePerSecond:  s.getFloat(KeyEmbedRate, defaults.Embedding.RatePerSecond),
		},
		Vector: domain.VectorSettings{
			Backend: s.getBackend(defaults.Vector.Backend),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{KeyDataDir, settings.DataDir},
		{KeySearchColumn, settings.Search.Column},
		{KeySearchLimit, settings.Search.Limit},
		{KeySearchMinScore, settings.Search.MinScore},
		{KeySearchMaxSnippets, settings.Search.MaxSnippets},
		{KeyExplainStrategy, settings.Search.ExplainStrategy.String()},
		{KeyHighlightBefore, settings.Search.HighlightBefore},
		{KeyHighlightAfter, settings.Search.HighlightAfter},
		{KeyEmbedProvider, settings.Embedding.Provider.String()},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyEmbedTimeout, settings.Embedding.TimeoutSeconds},
		{KeyEmbedMaxRetries, settings.Embedding.MaxRetries},
		{KeyEmbedRate, settings.Embedding.RatePerSecond},
		{KeyVectorBackend, settings.Vector.Backend.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(KeyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	return nil
}

// Keys returns every settable key in display order.
func (s *SettingsService) Keys() []string {
	out := make([]string, len(settingKeys))
	copy(out, settingKeys)
	return out
}

// Set parses and stores a single setting.
func (s *SettingsService) Set(key, value string) error {
	value = strings.TrimSpace(value)

	var parsed any
	switch key {
	case KeyDataDir, KeySearchColumn, KeyEmbedModel, KeyEmbedBaseURL, KeyEmbedAPIKey:
		if value == "" && (key == KeyDataDir || key == KeySearchColumn) {
			return fmt.Errorf("%w: %s cannot be empty", domain.ErrInvalidInput, key)
		}
		parsed = value

	case KeyHighlightBefore, KeyHighlightAfter:
		parsed = value

	case KeySearchLimit, KeySearchMaxSnippets, KeyEmbedTimeout, KeyEmbedMaxRetries:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || (n == 0 && key != KeyEmbedMaxRetries) {
			return fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrInvalidInput, key, value)
		}
		parsed = n

	case KeySearchMinScore, KeyEmbedRate:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %q", domain.ErrInvalidInput, key, value)
		}
		if key == KeySearchMinScore && f > 1 {
			return fmt.Errorf("%w: %s must be at most 1, got %q", domain.ErrInvalidInput, key, value)
		}
		parsed = f

	case KeyExplainStrategy:
		if !domain.ExplainStrategy(value).IsValid() {
			return fmt.Errorf("%w: unknown explain strategy %q", domain.ErrInvalidInput, value)
		}
		parsed = value

	case KeyEmbedProvider:
		if !domain.EmbeddingProvider(value).IsValid() {
			return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, value)
		}
		parsed = value

	case KeyVectorBackend:
		if !domain.VectorBackend(value).IsValid() {
			return fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, value)
		}
		parsed = value

	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	return s.configStore.Set(key, parsed)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.EmbeddingProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	switch provider {
	case domain.EmbeddingProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	default:
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.DataDir == "" {
		return fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, KeyDataDir)
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	if settings.Search.MinScore < 0 || settings.Search.MinScore > 1 {
		return fmt.Errorf("%w: %s out of range: %v", domain.ErrInvalidInput, KeySearchMinScore, settings.Search.MinScore)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getExplainStrategy(defaultVal domain.ExplainStrategy) domain.ExplainStrategy {
	strategy := domain.ExplainStrategy(s.configStore.GetString(KeyExplainStrategy))
	if !strategy.IsValid() {
		return defaultVal
	}
	return strategy
}

func (s *SettingsService) getProvider(defaultVal domain.EmbeddingProvider) domain.EmbeddingProvider {
	provider := domain.EmbeddingProvider(s.configStore.GetString(KeyEmbedProvider))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(KeyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
