// Package cache provides an LRU-caching decorator for embedding services.
//
// Query embeddings repeat often (the same question asked twice, evaluation
// runs over a fixed question set), so caching by exact text avoids a remote
// round trip for each repeat.
package cache

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultSize is the default number of cached vectors.
const DefaultSize = 1024

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

// EmbeddingService caches vectors produced by another embedding service.
type EmbeddingService struct {
	next  driven.EmbeddingService
	cache *lru.Cache[string, []float32]

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps next with an LRU cache holding up to size vectors.
func New(next driven.EmbeddingService, size int) (*EmbeddingService, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &EmbeddingService{next: next, cache: c}, nil
}

// Embed returns a cached vector or delegates on a miss.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.cache.Get(text); ok {
		s.hits.Add(1)
		return slices.Clone(v), nil
	}
	s.misses.Add(1)

	v, err := s.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Add(text, slices.Clone(v))
	return v, nil
}

// EmbedBatch serves hits from the cache and embeds the misses in one call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if v, ok := s.cache.Get(text); ok {
			out[i] = slices.Clone(v)
			continue
		}
		missing = append(missing, i)
	}
	s.hits.Add(int64(len(texts) - len(missing)))
	s.misses.Add(int64(len(missing)))

	if len(missing) == 0 {
		return out, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	vectors, err := s.next.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), len(pending))
	}
	for j, i := range missing {
		out[i] = vectors[j]
		s.cache.Add(texts[i], slices.Clone(vectors[j]))
	}
	return out, nil
}

// Stats returns hit and miss counts.
func (s *EmbeddingService) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Size:   s.cache.Len(),
	}
}

// Purge empties the cache.
func (s *EmbeddingService) Purge() {
	s.cache.Purge()
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.next.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.next.ModelName()
}

// Ping delegates to the wrapped service.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close purges the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.cache.Purge()
	return s.next.Close()
}
