package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// languageNames maps partition tags to the names used in prompts.
var languageNames = map[string]string{
	"csharp":     "C#",
	"cpp":        "C++",
	"c":          "C",
	"go":         "Go",
	"java":       "Java",
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"python":     "Python",
	"rust":       "Rust",
	"sql":        "SQL",
	"bash":       "Bash",
	"powershell": "PowerShell",
}

// AskService retrieves similar questions and generates an answer from them.
type AskService struct {
	retriever driving.RetrievalService
	generator driven.AnswerGenerator

	// defaultLanguage names the language when a call does not select a partition.
	defaultLanguage string
}

// NewAskService creates an ask service. generator may be nil, in which case
// answers carry retrieval results only.
func NewAskService(retriever driving.RetrievalService, generator driven.AnswerGenerator, defaultLanguage string) *AskService {
	if defaultLanguage == "" {
		defaultLanguage = domain.DefaultAnswerLanguage
	}
	return &AskService{
		retriever:       retriever,
		generator:       generator,
		defaultLanguage: defaultLanguage,
	}
}

// Ask runs retrieval then generation. The returned Answer is never nil;
// a non-nil error explains a degraded status.
func (s *AskService) Ask(ctx context.Context, question string, opts domain.RetrievalOptions) (*domain.Answer, error) {
	answer := &domain.Answer{Question: question}

	results, err := s.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		logger.Warn("retrieval failed: %v", err)
		answer.Status = domain.AnswerStatusUnavailable
		answer.Message = domain.MessageUnavailable
		if errors.Is(err, domain.ErrUnknownLanguage) {
			answer.Message = err.Error()
		}
		return answer, fmt.Errorf("retrieve: %w", err)
	}

	answer.Results = results
	if len(results) == 0 {
		answer.Status = domain.AnswerStatusNoResults
		answer.Message = domain.MessageNoResults
		return answer, nil
	}

	if s.generator == nil {
		answer.Status = domain.AnswerStatusRetrievalOnly
		answer.Message = domain.MessageNoLLM
		return answer, nil
	}

	text, err := s.generator.Generate(ctx, question, results, s.languageName(opts.Language))
	if err != nil {
		logger.Warn("answer generation failed: %v", err)
		answer.Text = domain.ApologyAnswer
		answer.Status = domain.AnswerStatusGenerationFailed
		return answer, fmt.Errorf("generate: %w", err)
	}

	answer.Text = text
	answer.Status = domain.AnswerStatusOK
	return answer, nil
}

func (s *AskService) languageName(tag string) string {
	tag = normaliseLanguage(tag)
	if tag == "" {
		return s.defaultLanguage
	}
	if name, ok := languageNames[tag]; ok {
		return name
	}
	return tag
}
