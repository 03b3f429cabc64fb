package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure AnswerGenerator implements the interface.
var _ driven.AnswerGenerator = (*AnswerGenerator)(nil)

// DefaultAnswerTemperature keeps answers close to the retrieved material.
const DefaultAnswerTemperature = 0.2

// AnswerGenerator asks an LLM to answer a question from retrieved Q&A pairs.
type AnswerGenerator struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	opts    driven.ChatOptions
}

// NewAnswerGenerator creates an answer generator.
func NewAnswerGenerator(llm driven.LLMService, prompts driven.PromptStore) *AnswerGenerator {
	return &AnswerGenerator{
		llm:     llm,
		prompts: prompts,
		opts:    driven.ChatOptions{Temperature: DefaultAnswerTemperature},
	}
}

// Generate returns the model's answer for question grounded in results.
func (g *AnswerGenerator) Generate(
	ctx context.Context, question string, results []domain.RetrievalResult, language string,
) (string, error) {
	if g.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	if language == "" {
		language = domain.DefaultAnswerLanguage
	}

	system, err := g.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return "", fmt.Errorf("load system prompt: %w", err)
	}
	user, err := g.prompts.Load(driven.PromptAnswerUser)
	if err != nil {
		return "", fmt.Errorf("load user prompt: %w", err)
	}

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: fmt.Sprintf(system, language)},
		{Role: driven.RoleUser, Content: fmt.Sprintf(user, question, BuildContext(results))},
	}

	logger.Debug("generating %s answer with %s from %d references", language, g.llm.ModelName(), len(results))
	answer, err := g.llm.Chat(ctx, messages, g.opts)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer from %s", domain.ErrLLMUnavailable, g.llm.ModelName())
	}
	return answer, nil
}

// BuildContext renders results as numbered references separated by blank lines.
func BuildContext(results []domain.RetrievalResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Reference ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(":\nQuestion: ")
		b.WriteString(r.Question)
		b.WriteString("\nAnswer: ")
		b.WriteString(strings.TrimSpace(r.Answer))
	}
	return b.String()
}
