package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// Partition binds a language tag to its corpus file and index.
type Partition struct {
	Language   string
	CorpusPath string
	Index      driven.VectorIndex
}

// IndexService loads, builds and persists language partition indexes.
type IndexService struct {
	reader     driven.CorpusReader
	partitions []Partition
}

// NewIndexService creates an index service. Partitions are kept in language order.
func NewIndexService(reader driven.CorpusReader, partitions []Partition) *IndexService {
	sorted := make([]Partition, len(partitions))
	for i, p := range partitions {
		p.Language = normaliseLanguage(p.Language)
		sorted[i] = p
	}
	slices.SortFunc(sorted, func(a, b Partition) int {
		return strings.Compare(a.Language, b.Language)
	})
	return &IndexService{reader: reader, partitions: sorted}
}

// Indexes returns the partition indexes keyed by language tag.
func (s *IndexService) Indexes() map[string]driven.VectorIndex {
	out := make(map[string]driven.VectorIndex, len(s.partitions))
	for _, p := range s.partitions {
		out[p.Language] = p.Index
	}
	return out
}

// Ensure loads every partition, rebuilding those whose snapshot is missing or corrupt.
func (s *IndexService) Ensure(ctx context.Context) error {
	for _, p := range s.partitions {
		err := p.Index.Load(ctx)
		switch {
		case err == nil:
			continue
		case errors.Is(err, domain.ErrIndexNotFound):
			logger.Info("no saved index for %s, building from %s", p.Language, p.CorpusPath)
		case errors.Is(err, domain.ErrIndexCorrupt):
			logger.Warn("saved index for %s is unusable, rebuilding: %v", p.Language, err)
		default:
			return fmt.Errorf("load %s index: %w", p.Language, err)
		}

		if err := s.build(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild reloads the corpus for language and replaces its index.
func (s *IndexService) Rebuild(ctx context.Context, language string) (*domain.IndexInfo, error) {
	p, ok := s.find(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownLanguage, language)
	}
	if err := s.build(ctx, p); err != nil {
		return nil, err
	}
	info := p.Index.Info()
	return &info, nil
}

// Info summarises every partition in language order.
func (s *IndexService) Info(_ context.Context) ([]domain.IndexInfo, error) {
	infos := make([]domain.IndexInfo, 0, len(s.partitions))
	for _, p := range s.partitions {
		infos = append(infos, p.Index.Info())
	}
	return infos, nil
}

// Close closes every partition index.
func (s *IndexService) Close() error {
	var errs []error
	for _, p := range s.partitions {
		if err := p.Index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s index: %w", p.Language, err))
		}
	}
	return errors.Join(errs...)
}

func (s *IndexService) build(ctx context.Context, p Partition) error {
	if p.CorpusPath == "" {
		return fmt.Errorf("%w: no corpus configured for %s", domain.ErrInvalidInput, p.Language)
	}

	records, err := s.reader.Load(ctx, p.CorpusPath)
	if err != nil {
		return fmt.Errorf("load %s corpus: %w", p.Language, err)
	}
	logger.Info("loaded %d records for %s", len(records), p.Language)

	opts := driven.BuildOptions{
		Replace: true,
		Progress: func(done, total int) {
			logger.Debug("index %s: embedded %d/%d", p.Language, done, total)
		},
	}
	if err := p.Index.Build(ctx, records, opts); err != nil {
		return fmt.Errorf("build %s index: %w", p.Language, err)
	}
	if err := p.Index.Save(ctx); err != nil {
		return fmt.Errorf("save %s index: %w", p.Language, err)
	}
	return nil
}

func (s *IndexService) find(language string) (Partition, bool) {
	language = normaliseLanguage(language)
	for _, p := range s.partitions {
		if p.Language == language {
			return p, true
		}
	}
	return Partition{}, false
}
