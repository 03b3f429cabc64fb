package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

func TestNewConfigValidator(t *testing.T) {
	validator := NewConfigValidator()

	require.NotNil(t, validator)
}

func TestConfigValidator_ImplementsInterface(t *testing.T) {
	var _ driven.AIConfigValidator = (*ConfigValidator)(nil)
}

func TestConfigValidator_ValidateEmbedding_NilConfig(t *testing.T) {
	validator := NewConfigValidator()

	err := validator.ValidateEmbedding(nil)

	// nil config returns nil (graceful handling - nothing to validate)
	assert.NoError(t, err)
}

func TestConfigValidator_ValidateEmbedding_UnconfiguredProvider(t *testing.T) {
	validator := NewConfigValidator()
	config := &domain.EmbeddingSettings{
		Provider: "",
		Model:    "test-model",
	}

	err := validator.ValidateEmbedding(config)

	// Unconfigured provider returns nil (nothing to validate)
	assert.NoError(t, err)
}

func TestConfigValidator_ValidateLLM_NilConfig(t *testing.T) {
	validator := NewConfigValidator()

	err := validator.ValidateLLM(nil)

	// nil config returns nil (graceful handling - nothing to validate)
	assert.NoError(t, err)
}

func TestConfigValidator_ValidateLLM_UnconfiguredProvider(t *testing.T) {
	validator := NewConfigValidator()
	config := &domain.LLMSettings{
		Provider: "",
		Model:    "test-model",
	}

	err := validator.ValidateLLM(config)

	// Unconfigured provider returns nil (nothing to validate)
	assert.NoError(t, err)
}

func TestConfigValidator_ValidateEmbedding_Hashing(t *testing.T) {
	validator := NewConfigValidator()

	err := validator.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderHashing})

	assert.NoError(t, err)
}

func TestConfigValidator_ValidateEmbedding_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		config domain.EmbeddingSettings
	}{
		{"unknown provider", domain.EmbeddingSettings{Provider: "anthropic", Model: "m"}},
		{"negative dimensions", domain.EmbeddingSettings{Provider: domain.AIProviderHashing, Dimensions: -1}},
		{"missing model", domain.EmbeddingSettings{Provider: domain.AIProviderOllama}},
	}

	validator := NewConfigValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateEmbedding(&tt.config)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestConfigValidator_ValidateLLM_RejectsHashing(t *testing.T) {
	validator := NewConfigValidator()

	err := validator.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderHashing, Model: "x"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigValidator_ValidateLLM_UnknownProvider(t *testing.T) {
	validator := NewConfigValidator()

	err := validator.ValidateLLM(&domain.LLMSettings{Provider: "anthropic", Model: "claude"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
