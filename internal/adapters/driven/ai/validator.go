package ai

import (
	"fmt"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before they are saved.
// Static checks run first so a bad value is reported without a network call.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding rejects unusable embedding settings, then pings the provider.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if !config.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, config.Provider)
	}
	if config.Dimensions < 0 {
		return fmt.Errorf("%w: embedding dimensions must not be negative", domain.ErrInvalidInput)
	}
	if config.Provider != domain.AIProviderHashing && config.Model == "" {
		return fmt.Errorf("%w: %s embedding needs a model", domain.ErrInvalidInput, config.Provider)
	}
	return ValidateEmbeddingConfig(config)
}

// ValidateLLM rejects unusable LLM settings, then pings the provider.
// An empty provider is valid and means answers are not generated.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if config.Provider == domain.AIProviderHashing {
		return fmt.Errorf("%w: %s cannot generate answers", domain.ErrInvalidInput, config.Provider)
	}
	if !config.Provider.IsValid() {
		return fmt.Errorf("%w: unknown LLM provider %q", domain.ErrInvalidInput, config.Provider)
	}
	return ValidateLLMConfig(config)
}
