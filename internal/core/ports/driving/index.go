package driving

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// IndexService manages the lifecycle of language partition indexes.
type IndexService interface {
	// Ensure loads each partition's persisted index, building and saving it
	// from the corpus when missing or corrupt.
	Ensure(ctx context.Context) error

	// Rebuild reloads the corpus for language and replaces its index.
	Rebuild(ctx context.Context, language string) (*domain.IndexInfo, error)

	// Info summarises every partition.
	Info(ctx context.Context) ([]domain.IndexInfo, error)
}
