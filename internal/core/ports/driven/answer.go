package driven

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// AnswerGenerator synthesises an answer from retrieved context.
type AnswerGenerator interface {
	// Generate returns an answer for question grounded in results.
	// language names the programming language the answer should target.
	Generate(ctx context.Context, question string, results []domain.RetrievalResult, language string) (string, error)
}
