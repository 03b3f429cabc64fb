package driving

import (
	"context"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

// CorpusService acquires corpora from upstream sources.
type CorpusService interface {
	// Fetch downloads questions with accepted answers and writes them to path.
	// Returns the number of rows written.
	Fetch(ctx context.Context, query domain.FetchQuery, path string) (int, error)
}
