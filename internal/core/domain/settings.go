package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderHashing is the built-in offline feature-hashing embedder.
	// It supports embeddings only.
	AIProviderHashing AIProvider = "hashing"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderHashing:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama, or an OpenAI-compatible proxy).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's known vector size. Zero uses the model default.
	Dimensions int

	// CacheSize is the number of query embeddings kept in memory. Zero disables caching.
	CacheSize int

	// MaxRetries bounds retries of transient embedding failures.
	MaxRetries int
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

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderHashing {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// IndexBackend selects where index snapshots are persisted.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendFile stores a gob bundle with a JSON sidecar per partition.
	IndexBackendFile IndexBackend = "file"

	// IndexBackendSQLite stores snapshots in a SQLite database.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendBolt stores snapshots in a bbolt database.
	IndexBackendBolt IndexBackend = "bolt"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendFile, IndexBackendSQLite, IndexBackendBolt:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Backend selects the snapshot storage.
	Backend IndexBackend

	// Dir is the directory holding persisted indexes. Empty means ~/.stackqa/index.
	Dir string

	// BatchSize is the number of documents embedded per request during build.
	BatchSize int

	// Concurrency bounds parallel embedding batches during build.
	Concurrency int
}

// RetrievalSettings holds retrieval behaviour configuration.
type RetrievalSettings struct {
	// TopK is the default number of results.
	TopK int

	// FanOut multiplies k for the raw index query.
	FanOut int

	// Thresholds map distances to confidence levels.
	Thresholds ConfidenceThresholds

	// EmbedTimeout bounds each query embedding call.
	EmbedTimeout time.Duration

	// MaxDistance drops matches farther than this. Zero disables the cut-off.
	MaxDistance float64
}

// CorpusSettings describes where corpora live.
type CorpusSettings struct {
	// Path is the corpus CSV for the default partition.
	Path string

	// Partitions maps language tags to corpus CSV paths.
	Partitions map[string]string

	// DefaultLanguage is the tag used for the default partition.
	DefaultLanguage string
}

// AnswerSettings holds answer generation configuration.
type AnswerSettings struct {
	// Language is the programming language named in the prompt.
	Language string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Index     IndexSettings
	Retrieval RetrievalSettings
	Corpus    CorpusSettings
	Answer    AnswerSettings
}

// Default values for settings without an explicit configuration.
const (
	DefaultIndexBatchSize   = 64
	DefaultIndexConcurrency = 4
	DefaultEmbedTimeout     = 30 * time.Second
	DefaultCorpusPath       = "stackoverflow_data.csv"
	DefaultLanguage         = "csharp"
	DefaultAnswerLanguage   = "C#"
)

// DefaultAppSettings returns settings with sensible defaults.
// Embedding uses the offline hashing provider so the tool works without a network.
// The LLM is left unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Model:      DefaultEmbeddingModels()[AIProviderHashing],
			MaxRetries: 3,
		},
		LLM: LLMSettings{},
		Index: IndexSettings{
			Backend:     IndexBackendFile,
			BatchSize:   DefaultIndexBatchSize,
			Concurrency: DefaultIndexConcurrency,
		},
		Retrieval: RetrievalSettings{
			TopK:         DefaultTopK,
			FanOut:       DefaultFanOut,
			Thresholds:   DefaultConfidenceThresholds(),
			EmbedTimeout: DefaultEmbedTimeout,
		},
		Corpus: CorpusSettings{
			Path:            DefaultCorpusPath,
			DefaultLanguage: DefaultLanguage,
		},
		Answer: AnswerSettings{
			Language: DefaultAnswerLanguage,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderHashing,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
		AIProviderHashing: "hashing-384",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Offline
		"hashing-384": 384,
	}
}

// ParsePartitions parses "lang=path" entries into a map.
// Language tags are lower-cased; entries without '=' are rejected.
func ParsePartitions(entries []string) (map[string]string, error) {
	partitions := make(map[string]string, len(entries))
	for _, entry := range entries {
		lang, path, ok := strings.Cut(entry, "=")
		lang = strings.ToLower(strings.TrimSpace(lang))
		path = strings.TrimSpace(path)
		if !ok || lang == "" || path == "" {
			return nil, fmt.Errorf("%w: partition %q must look like lang=path", ErrInvalidInput, entry)
		}
		partitions[lang] = path
	}
	return partitions, nil
}

// FormatPartitions renders a partition map as sorted "lang=path" entries.
func FormatPartitions(partitions map[string]string) []string {
	entries := make([]string, 0, len(partitions))
	for lang, path := range partitions {
		entries = append(entries, lang+"="+path)
	}
	sort.Strings(entries)
	return entries
}
