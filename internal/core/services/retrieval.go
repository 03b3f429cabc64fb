package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/core/ports/driving"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalConfig configures a RetrievalService. Zero fields take defaults.
type RetrievalConfig struct {
	// DefaultLanguage is the partition used when a call names none.
	DefaultLanguage string

	// TopK is used when RetrievalOptions.K is zero.
	TopK int

	// FanOut multiplies k for the raw index query.
	FanOut int

	Thresholds domain.ConfidenceThresholds

	// EmbedTimeout bounds the query embedding call.
	EmbedTimeout time.Duration

	// MaxDistance drops matches farther than this. Zero disables the cut-off.
	MaxDistance float64
}

// RetrievalConfigFromSettings builds a RetrievalConfig from application settings.
func RetrievalConfigFromSettings(settings *domain.AppSettings) RetrievalConfig {
	return RetrievalConfig{
		DefaultLanguage: settings.Corpus.DefaultLanguage,
		TopK:            settings.Retrieval.TopK,
		FanOut:          settings.Retrieval.FanOut,
		Thresholds:      settings.Retrieval.Thresholds,
		EmbedTimeout:    settings.Retrieval.EmbedTimeout,
		MaxDistance:     settings.Retrieval.MaxDistance,
	}
}

// RetrievalService finds the closest prior questions in a language partition.
type RetrievalService struct {
	embedder   driven.EmbeddingService
	partitions map[string]driven.VectorIndex
	cfg        RetrievalConfig
}

// NewRetrievalService creates a retrieval service over the given partitions,
// keyed by language tag.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	partitions map[string]driven.VectorIndex,
	cfg RetrievalConfig,
) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = domain.DefaultFanOut
	}
	if cfg.Thresholds == (domain.ConfidenceThresholds{}) {
		cfg.Thresholds = domain.DefaultConfidenceThresholds()
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = domain.DefaultEmbedTimeout
	}
	cfg.DefaultLanguage = normaliseLanguage(cfg.DefaultLanguage)

	normalised := make(map[string]driven.VectorIndex, len(partitions))
	for lang, idx := range partitions {
		normalised[normaliseLanguage(lang)] = idx
	}

	return &RetrievalService{
		embedder:   embedder,
		partitions: normalised,
		cfg:        cfg,
	}
}

// Languages lists the registered partition tags.
func (s *RetrievalService) Languages() []string {
	return slices.Sorted(maps.Keys(s.partitions))
}

// Retrieve returns at most k results with distinct questions, closest first.
func (s *RetrievalService) Retrieve(
	ctx context.Context, question string, opts domain.RetrievalOptions,
) ([]domain.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return []domain.RetrievalResult{}, nil
	}

	k := opts.K
	if k <= 0 {
		k = s.cfg.TopK
	}

	language, idx, err := s.partition(opts.Language)
	if err != nil {
		return nil, err
	}
	fanOut := queryDepth(k, s.cfg.FanOut)
	logger.Debug("retrieve: language=%s k=%d fan-out=%d", language, k, fanOut)

	vector, err := s.embed(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := idx.QueryVector(ctx, vector, fanOut)
	if err != nil {
		return nil, fmt.Errorf("query %s index: %w", language, err)
	}

	results := s.rank(matches, k)
	logger.Debug("retrieve: %d raw matches, %d results", len(matches), len(results))
	return results, nil
}

// partition resolves a language tag to its index.
func (s *RetrievalService) partition(language string) (string, driven.VectorIndex, error) {
	language = normaliseLanguage(language)
	if language == "" {
		if idx, ok := s.partitions[s.cfg.DefaultLanguage]; ok {
			return s.cfg.DefaultLanguage, idx, nil
		}
		if len(s.partitions) == 1 {
			for lang, idx := range s.partitions {
				return lang, idx, nil
			}
		}
		return "", nil, fmt.Errorf("%w: no default partition among %v", domain.ErrUnknownLanguage, s.Languages())
	}

	idx, ok := s.partitions[language]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q (available: %s)",
			domain.ErrUnknownLanguage, language, strings.Join(s.Languages(), ", "))
	}
	return language, idx, nil
}

// embed computes the query vector within EmbedTimeout.
func (s *RetrievalService) embed(ctx context.Context, question string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	vector, err := s.embedder.Embed(embedCtx, question)
	if err == nil {
		return vector, nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(embedCtx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: embedding took longer than %s", domain.ErrRetrievalTimeout, s.cfg.EmbedTimeout)
	case errors.Is(err, domain.ErrEmbeddingService):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
}

// queryDepth is k times fanOut, saturating at math.MaxInt.
func queryDepth(k, fanOut int) int {
	fanOut = max(fanOut, 1)
	return min(k, math.MaxInt/fanOut) * fanOut
}

// rank deduplicates matches by question, keeping the closest, and truncates to k.
// Matches beyond MaxDistance are dropped; the result is never padded.
func (s *RetrievalService) rank(matches []driven.Match, k int) []domain.RetrievalResult {
	results := make([]domain.RetrievalResult, 0, min(k, len(matches)))
	seen := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		if len(results) == k {
			break
		}
		if s.cfg.MaxDistance > 0 && m.Distance > s.cfg.MaxDistance {
			break
		}
		if _, dup := seen[m.Record.Question]; dup {
			continue
		}
		seen[m.Record.Question] = struct{}{}

		results = append(results, domain.RetrievalResult{
			Question:        m.Record.Question,
			Answer:          m.Record.Answer,
			SourceLink:      m.Record.SourceLink,
			SimilarityScore: m.Distance,
			ConfidenceLevel: s.cfg.Thresholds.Level(m.Distance),
		})
	}
	return results
}

func normaliseLanguage(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
