package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure CorpusService implements the interface.
var _ driving.CorpusService = (*CorpusService)(nil)

// CorpusService fetches Q&A pairs from an upstream source into a corpus file.
type CorpusService struct {
	source driven.QuestionSource
	writer driven.CorpusWriter
}

// NewCorpusService creates a corpus service.
func NewCorpusService(source driven.QuestionSource, writer driven.CorpusWriter) *CorpusService {
	return &CorpusService{source: source, writer: writer}
}

// Fetch downloads questions for query and writes them to path. When the
// source fails part way, whatever was fetched is still written and the
// source error is returned with the row count.
func (s *CorpusService) Fetch(ctx context.Context, query domain.FetchQuery, path string) (int, error) {
	if strings.TrimSpace(query.Tag) == "" {
		return 0, fmt.Errorf("%w: tag is required", domain.ErrInvalidInput)
	}
	if path == "" {
		return 0, fmt.Errorf("%w: output path is required", domain.ErrInvalidInput)
	}

	items, fetchErr := s.source.Fetch(ctx, query)
	if len(items) == 0 {
		if fetchErr != nil {
			return 0, fmt.Errorf("fetch %s: %w", query.Tag, fetchErr)
		}
		logger.Warn("no questions with accepted answers found for %s", query.Tag)
		return 0, nil
	}

	if err := s.writer.Write(ctx, path, items); err != nil {
		return 0, fmt.Errorf("write corpus: %w", err)
	}
	logger.Info("wrote %d questions for %s to %s", len(items), query.Tag, path)

	if fetchErr != nil {
		return len(items), fmt.Errorf("fetch %s (partial, %d written): %w", query.Tag, len(items), fetchErr)
	}
	return len(items), nil
}
