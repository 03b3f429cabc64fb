package driving

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// RetrievalService finds prior questions similar to a new one.
type RetrievalService interface {
	// Retrieve returns at most opts.K results with distinct questions,
	// ordered by ascending distance.
	Retrieve(ctx context.Context, question string, opts domain.RetrievalOptions) ([]domain.RetrievalResult, error)

	// Languages lists the registered partition tags.
	Languages() []string
}

// AskService answers a question using retrieved context.
type AskService interface {
	// Ask retrieves similar questions and generates an answer.
	// The returned Answer is always usable; the error reports what degraded.
	Ask(ctx context.Context, question string, opts domain.RetrievalOptions) (*domain.Answer, error)
}
