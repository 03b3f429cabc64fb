package driven

import "github.com/custodia-labs/stackqa/internal/core/domain"

// AIConfigValidator checks provider settings before the settings service saves them.
type AIConfigValidator interface {
	// ValidateEmbedding checks embedding settings and pings the provider.
	// Settings without a provider are valid.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM checks LLM settings and pings the provider.
	// An empty provider is valid: retrieval works without a language model.
	ValidateLLM(config *domain.LLMSettings) error
}
