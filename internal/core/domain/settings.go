package domain

// EmbeddingProvider identifies the service that turns text into vectors.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderFastEmbed runs a local ONNX sentence-transformer.
	EmbeddingProviderFastEmbed EmbeddingProvider = "fastembed"

	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"

	// EmbeddingProviderOpenAI is the OpenAI cloud API.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"

	// EmbeddingProviderHashing is an offline feature-hashing embedder.
	// It captures word overlap only; useful without a model download.
	EmbeddingProviderHashing EmbeddingProvider = "hashing"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderFastEmbed, EmbeddingProviderOllama, EmbeddingProviderOpenAI, EmbeddingProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderOpenAI
}

// IsLocal returns true if this provider runs without network access.
func (p EmbeddingProvider) IsLocal() bool {
	return p == EmbeddingProviderFastEmbed || p == EmbeddingProviderHashing
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderFastEmbed:
		return "FastEmbed (local ONNX)"
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	case EmbeddingProviderOpenAI:
		return "OpenAI (cloud)"
	case EmbeddingProviderHashing:
		return "Hashing (offline, lexical overlap)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector store implementation.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendFlat is the exact cosine store persisted as a SQLite file.
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendChromem is the chromem-go persistent database.
	VectorBackendChromem VectorBackend = "chromem"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendFlat || b == VectorBackendChromem
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	// Column is the dataset column that is indexed and searched.
	Column string

	// Limit is the default page size.
	Limit int

	// MinScore is the semantic acceptance threshold.
	MinScore float64

	// MaxSnippets is the number of sentences in an explanation preview.
	MaxSnippets int

	// ExplainStrategy selects how document hits are explained.
	ExplainStrategy ExplainStrategy

	// HighlightBefore and HighlightAfter wrap matched text. Both empty
	// disables highlighting.
	HighlightBefore string
	HighlightAfter  string
}

// HasHighlight returns true if a delimiter pair is configured.
func (s SearchSettings) HasHighlight() bool {
	return s.HighlightBefore != "" || s.HighlightAfter != ""
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider EmbeddingProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// TimeoutSeconds bounds each embedding call.
	TimeoutSeconds int

	// MaxRetries is the number of retries after a retryable failure.
	MaxRetries int

	// RatePerSecond limits embedding calls. Zero disables the limiter.
	RatePerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// VectorSettings holds vector store configuration.
type VectorSettings struct {
	Backend VectorBackend
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir is the pipeline data directory. Indexes live in DataDir/1_interim.
	DataDir string

	Search    SearchSettings
	Embedding EmbeddingSettings
	Vector    VectorSettings
}

// Embedding defaults.
const (
	DefaultEmbeddingTimeoutSeconds = 30
	DefaultEmbeddingMaxRetries     = 3
)

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		DataDir: "data",
		Search: SearchSettings{
			Column:          DefaultSearchColumn,
			Limit:           DefaultSearchLimit,
			MinScore:        SearchMinScore,
			MaxSnippets:     SearchMaxSnippets,
			ExplainStrategy: DefaultExplainStrategy,
		},
		Embedding: EmbeddingSettings{
			Provider:       EmbeddingProviderFastEmbed,
			Model:          DefaultEmbeddingModels()[EmbeddingProviderFastEmbed],
			TimeoutSeconds: DefaultEmbeddingTimeoutSeconds,
			MaxRetries:     DefaultEmbeddingMaxRetries,
		},
		Vector: VectorSettings{
			Backend: VectorBackendFlat,
		},
	}
}

// AllEmbeddingProviders returns every embedding provider.
func AllEmbeddingProviders() []EmbeddingProvider {
	return []EmbeddingProvider{
		EmbeddingProviderFastEmbed,
		EmbeddingProviderOllama,
		EmbeddingProviderOpenAI,
		EmbeddingProviderHashing,
	}
}

// AllVectorBackends returns every vector backend.
func AllVectorBackends() []VectorBackend {
	return []VectorBackend{VectorBackendFlat, VectorBackendChromem}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		EmbeddingProviderFastEmbed: "all-MiniLM-L6-v2",
		EmbeddingProviderOllama:    "all-minilm",
		EmbeddingProviderOpenAI:    "text-embedding-3-small",
		EmbeddingProviderHashing:   "fnv-512",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"all-MiniLM-L6-v2":       384,
		"bge-small-en-v1.5":      384,
		"all-minilm":             384,
		"nomic-embed-text":       768,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"fnv-512":                512,
	}
}
