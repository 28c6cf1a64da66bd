package cli

import (
	"context"

	"github.com/kingsdigitallab/refida/internal/core/domain"
)

type mockSearchService struct {
	hits        []domain.Hit
	err         error
	explanation domain.Explanation
	explainErr  error
	highlighted string
	infos       []domain.IndexInfo

	lastMode   domain.SearchMode
	lastPhrase string
	lastOpts   domain.SearchOptions
}

func (m *mockSearchService) SearchPhrase(
	_ context.Context, mode domain.SearchMode, phrase string, opts domain.SearchOptions,
) ([]domain.Hit, error) {
	m.lastMode = mode
	m.lastPhrase = phrase
	m.lastOpts = opts
	return m.hits, m.err
}

func (m *mockSearchService) Explain(_ context.Context, _ domain.Hit, _ string, _ int) (domain.Explanation, error) {
	return m.explanation, m.explainErr
}

func (m *mockSearchService) GetHighlightedTextFromHit(_ context.Context, hit domain.Hit, _ string, _ int) (string, error) {
	if m.highlighted != "" {
		return m.highlighted, nil
	}
	return hit.Text, nil
}

func (m *mockSearchService) Info(_ context.Context) []domain.IndexInfo {
	return m.infos
}

type mockReindexService struct {
	report   *domain.ReindexReport
	err      error
	calls    int
	column   string
	progress []domain.Progress
}

func (m *mockReindexService) Reindex(_ context.Context, column string, progress domain.ProgressFunc) (*domain.ReindexReport, error) {
	m.calls++
	m.column = column
	for _, p := range m.progress {
		if progress != nil {
			progress(p)
		}
	}
	return m.report, m.err
}

type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	embedErr    error
	setErr      error
	set         map[string]string

	provider domain.EmbeddingProvider
	model    string
	apiKey   string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: make(map[string]string)}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"data.dir", "search.min_score"}
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.EmbeddingProvider, model, apiKey string) error {
	m.provider = provider
	m.model = model
	m.apiKey = apiKey
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.embedErr
}
