package driving

import "github.com/custodia-labs/stackqa/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetThresholds updates the confidence thresholds.
	SetThresholds(thresholds domain.ConfidenceThresholds) error

	// SetValue parses and stores a single setting by its dotted key.
	SetValue(key, value string) error

	// Keys lists the keys accepted by SetValue.
	Keys() []string

	// SetPartition maps a language tag to a corpus file.
	SetPartition(language, corpusPath string) error

	// Validate checks that current settings are usable.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
