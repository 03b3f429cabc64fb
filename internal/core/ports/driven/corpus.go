package driven

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// CorpusReader loads cleaned question/answer records.
type CorpusReader interface {
	// Load reads and normalises the corpus at path, preserving row order.
	// Returns domain.ErrCorpusFormat when required columns are missing.
	Load(ctx context.Context, path string) ([]domain.QARecord, error)
}

// CorpusWriter writes raw question/answer pairs in the corpus format.
type CorpusWriter interface {
	Write(ctx context.Context, path string, items []domain.RawQA) error
}

// QuestionSource fetches raw question/answer pairs from an upstream site.
type QuestionSource interface {
	// Fetch returns questions with accepted answers for the query.
	Fetch(ctx context.Context, query domain.FetchQuery) ([]domain.RawQA, error)
}
