package services

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDimensions  = "embedding.dimensions"
	keyEmbedCacheSize   = "embedding.cache_size"
	keyEmbedMaxRetries  = "embedding.max_retries"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyIndexBackend     = "index.backend"
	keyIndexDir         = "index.dir"
	keyIndexBatchSize   = "index.batch_size"
	keyIndexConcurrency = "index.concurrency"
	keyTopK             = "retrieval.top_k"
	keyFanOut           = "retrieval.fan_out"
	keyHighThreshold    = "retrieval.high_threshold"
	keyMediumThreshold  = "retrieval.medium_threshold"
	keyEmbedTimeout     = "retrieval.embed_timeout"
	keyMaxDistance      = "retrieval.max_distance"
	keyCorpusPath       = "corpus.path"
	keyCorpusPartitions = "corpus.partitions"
	keyDefaultLanguage  = "corpus.default_language"
	keyAnswerLanguage   = "answer.language"
)

// Environment variables consulted when an API key is not stored in config.
//
//nolint:gosec // G101: variable names, not credentials.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
)

// valueKind describes how SetValue parses a string.
type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
	kindList
)

// settableKeys lists the keys accepted by SetValue.
var settableKeys = map[string]valueKind{
	keyEmbedProvider:    kindString,
	keyEmbedModel:       kindString,
	keyEmbedBaseURL:     kindString,
	keyEmbedAPIKey:      kindString,
	keyEmbedDimensions:  kindInt,
	keyEmbedCacheSize:   kindInt,
	keyEmbedMaxRetries:  kindInt,
	keyLLMProvider:      kindString,
	keyLLMModel:         kindString,
	keyLLMBaseURL:       kindString,
	keyLLMAPIKey:        kindString,
	keyIndexBackend:     kindString,
	keyIndexDir:         kindString,
	keyIndexBatchSize:   kindInt,
	keyIndexConcurrency: kindInt,
	keyTopK:             kindInt,
	keyFanOut:           kindInt,
	keyHighThreshold:    kindFloat,
	keyMediumThreshold:  kindFloat,
	keyEmbedTimeout:     kindDuration,
	keyMaxDistance:      kindFloat,
	keyCorpusPath:       kindString,
	keyCorpusPartitions: kindList,
	keyDefaultLanguage:  kindString,
	keyAnswerLanguage:   kindString,
}

// SettingsService maps flat config keys to domain.AppSettings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
// aiValidator is optional.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Keys lists every key accepted by SetValue, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get retrieves current application settings, filling gaps with defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	partitions, err := domain.ParsePartitions(s.configStore.GetStringSlice(keyCorpusPartitions))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", keyCorpusPartitions, err)
	}

	timeout := defaults.Retrieval.EmbedTimeout
	if raw := s.configStore.GetString(keyEmbedTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, keyEmbedTimeout, err)
		}
		timeout = d
	}

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:      s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.configStore.GetInt(keyEmbedDimensions),
			CacheSize:  s.configStore.GetInt(keyEmbedCacheSize),
			MaxRetries: s.getInt(keyEmbedMaxRetries, defaults.Embedding.MaxRetries),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Index: domain.IndexSettings{
			Backend:     s.getBackend(defaults.Index.Backend),
			Dir:         s.configStore.GetString(keyIndexDir),
			BatchSize:   s.getInt(keyIndexBatchSize, defaults.Index.BatchSize),
			Concurrency: s.getInt(keyIndexConcurrency, defaults.Index.Concurrency),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:   s.getInt(keyTopK, defaults.Retrieval.TopK),
			FanOut: s.getInt(keyFanOut, defaults.Retrieval.FanOut),
			Thresholds: domain.ConfidenceThresholds{
				High:   s.getFloat(keyHighThreshold, defaults.Retrieval.Thresholds.High),
				Medium: s.getFloat(keyMediumThreshold, defaults.Retrieval.Thresholds.Medium),
			},
			EmbedTimeout: timeout,
			MaxDistance:  s.configStore.GetFloat(keyMaxDistance),
		},
		Corpus: domain.CorpusSettings{
			Path:            s.getString(keyCorpusPath, defaults.Corpus.Path),
			Partitions:      partitions,
			DefaultLanguage: strings.ToLower(s.getString(keyDefaultLanguage, defaults.Corpus.DefaultLanguage)),
		},
		Answer: domain.AnswerSettings{
			Language: s.getString(keyAnswerLanguage, defaults.Answer.Language),
		},
	}

	// An LLM configured without a model gets the provider default.
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}
	s.applyEnv(settings)

	return settings, nil
}

// applyEnv fills missing OpenAI keys from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	key := s.getenv(EnvOpenAIKey)
	if key == "" {
		return
	}
	if settings.Embedding.Provider == domain.AIProviderOpenAI && settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = key
	}
	if settings.LLM.Provider == domain.AIProviderOpenAI && settings.LLM.APIKey == "" {
		settings.LLM.APIKey = key
	}
}

// Save persists application settings.
// API keys are only written when set, so keys supplied through the environment stay out of the file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedCacheSize, settings.Embedding.CacheSize},
		{keyEmbedMaxRetries, settings.Embedding.MaxRetries},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyIndexBackend, settings.Index.Backend.String()},
		{keyIndexDir, settings.Index.Dir},
		{keyIndexBatchSize, settings.Index.BatchSize},
		{keyIndexConcurrency, settings.Index.Concurrency},
		{keyTopK, settings.Retrieval.TopK},
		{keyFanOut, settings.Retrieval.FanOut},
		{keyHighThreshold, settings.Retrieval.Thresholds.High},
		{keyMediumThreshold, settings.Retrieval.Thresholds.Medium},
		{keyEmbedTimeout, settings.Retrieval.EmbedTimeout.String()},
		{keyMaxDistance, settings.Retrieval.MaxDistance},
		{keyCorpusPath, settings.Corpus.Path},
		{keyCorpusPartitions, domain.FormatPartitions(settings.Corpus.Partitions)},
		{keyDefaultLanguage, settings.Corpus.DefaultLanguage},
		{keyAnswerLanguage, settings.Answer.Language},
	}
	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.getenv(EnvOpenAIKey) {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if settings.LLM.APIKey != "" && settings.LLM.APIKey != s.getenv(EnvOpenAIKey) {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetValue parses value according to key's type and stores it.
// Comma-separated values are accepted for list keys.
func (s *SettingsService) SetValue(key, value string) error {
	kind, ok := settableKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %s must be a positive duration such as 30s", domain.ErrInvalidInput, key)
		}
		parsed = d.String()
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	default:
		parsed = value
	}

	if err := validateValue(key, parsed); err != nil {
		return err
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func validateValue(key string, value any) error {
	switch key {
	case keyEmbedProvider:
		p := domain.AIProvider(value.(string))
		if !slices.Contains(domain.AllEmbeddingProviders(), p) {
			return fmt.Errorf("%w: provider %q does not support embeddings", domain.ErrInvalidInput, p)
		}
	case keyLLMProvider:
		p := domain.AIProvider(value.(string))
		if p != "" && !slices.Contains(domain.AllLLMProviders(), p) {
			return fmt.Errorf("%w: provider %q does not support text generation", domain.ErrInvalidInput, p)
		}
	case keyIndexBackend:
		if b := domain.IndexBackend(value.(string)); !b.IsValid() {
			return fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, b)
		}
	case keyCorpusPartitions:
		if _, err := domain.ParsePartitions(value.([]string)); err != nil {
			return err
		}
	case keyTopK, keyFanOut:
		if value.(int) < 1 {
			return fmt.Errorf("%w: %s must be at least 1", domain.ErrInvalidInput, key)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(EnvOpenAIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.BaseURL = defaultBaseURL(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey
	// A new model invalidates any explicit vector size.
	settings.Embedding.Dimensions = 0

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support text generation", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" && s.getenv(EnvOpenAIKey) == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.BaseURL = defaultBaseURL(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// defaultBaseURL keeps a custom URL for Ollama and clears it for cloud providers.
func defaultBaseURL(provider domain.AIProvider, current string) string {
	switch provider {
	case domain.AIProviderOllama:
		if current == "" {
			return "http://localhost:11434"
		}
		return current
	default:
		return ""
	}
}

// SetThresholds updates the confidence thresholds.
func (s *SettingsService) SetThresholds(thresholds domain.ConfidenceThresholds) error {
	if !thresholds.Valid() {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= high <= medium", domain.ErrInvalidInput)
	}
	if err := s.configStore.Set(keyHighThreshold, thresholds.High); err != nil {
		return fmt.Errorf("save %s: %w", keyHighThreshold, err)
	}
	if err := s.configStore.Set(keyMediumThreshold, thresholds.Medium); err != nil {
		return fmt.Errorf("save %s: %w", keyMediumThreshold, err)
	}
	return nil
}

// SetPartition maps a language tag to a corpus file.
func (s *SettingsService) SetPartition(language, corpusPath string) error {
	entry := strings.TrimSpace(language) + "=" + strings.TrimSpace(corpusPath)
	parsed, err := domain.ParsePartitions([]string{entry})
	if err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if settings.Corpus.Partitions == nil {
		settings.Corpus.Partitions = make(map[string]string)
	}
	for lang, path := range parsed {
		settings.Corpus.Partitions[lang] = path
	}

	if err := s.configStore.Set(keyCorpusPartitions, domain.FormatPartitions(settings.Corpus.Partitions)); err != nil {
		return fmt.Errorf("save %s: %w", keyCorpusPartitions, err)
	}
	return nil
}

// Validate checks that current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %q is not fully configured", settings.Embedding.Provider))
	}
	if !settings.Retrieval.Thresholds.Valid() {
		errs = append(errs, fmt.Errorf("thresholds must satisfy 0 <= high (%.2f) <= medium (%.2f)",
			settings.Retrieval.Thresholds.High, settings.Retrieval.Thresholds.Medium))
	}
	if settings.Retrieval.TopK < 1 || settings.Retrieval.FanOut < 1 {
		errs = append(errs, errors.New("retrieval.top_k and retrieval.fan_out must be at least 1"))
	}
	if settings.Retrieval.EmbedTimeout <= 0 {
		errs = append(errs, errors.New("retrieval.embed_timeout must be positive"))
	}
	if !settings.Index.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("unknown index backend %q", settings.Index.Backend))
	}
	if len(settings.Corpus.Partitions) == 0 && settings.Corpus.Path == "" {
		errs = append(errs, errors.New("no corpus configured: set corpus.path or corpus.partitions"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
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

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
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
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat treats an explicit 0 as a value, not as unset.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.IndexBackend) domain.IndexBackend {
	backend := domain.IndexBackend(s.configStore.GetString(keyIndexBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
