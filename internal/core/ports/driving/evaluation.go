package driving

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// EvaluationService scores answer quality.
type EvaluationService interface {
	// Evaluate scores every sample on every metric.
	Evaluate(ctx context.Context, samples []domain.EvaluationSample) (*domain.EvaluationReport, error)

	// EvaluateQuestions runs the ask pipeline for each question and scores the outcome.
	EvaluateQuestions(ctx context.Context, questions []EvaluationQuestion) (*domain.EvaluationReport, error)
}

// EvaluationQuestion is a question with an optional reference answer.
type EvaluationQuestion struct {
	Question    string `yaml:"question"`
	GroundTruth string `yaml:"ground_truth"`
	Language    string `yaml:"language"`
}
