// Package resilient wraps an embedding service with retries and a circuit breaker.
//
// Transient failures are retried with exponential backoff. Repeated failures
// open the breaker, after which calls fail fast with domain.ErrEmbeddingService
// until the breaker's timeout elapses.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/custodia-labs/stackqa/internal/core/domain"
	"github.com/custodia-labs/stackqa/internal/core/ports/driven"
	"github.com/custodia-labs/stackqa/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultMaxRetries       = 3
	DefaultInitialInterval  = 500 * time.Millisecond
	DefaultMaxInterval      = 5 * time.Second
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
)

// Config holds retry and breaker settings.
type Config struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxRetries is the number of retries after the first attempt (default: 3).
	MaxRetries int

	// InitialInterval is the first backoff delay (default: 500ms).
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay (default: 5s).
	MaxInterval time.Duration

	// FailureThreshold is the number of consecutive failures that opens the breaker (default: 5).
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open (default: 30s).
	OpenTimeout time.Duration
}

// EmbeddingService adds retries and circuit breaking to another embedding service.
type EmbeddingService struct {
	next    driven.EmbeddingService
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

// New wraps next.
func New(next driven.EmbeddingService, cfg Config) *EmbeddingService {
	if cfg.Name == "" {
		cfg.Name = "embedding:" + next.ModelName()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = DefaultOpenTimeout
	}

	threshold := cfg.FailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about the provider's health.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &EmbeddingService{next: next, cfg: cfg, breaker: breaker}
}

// Embed delegates with retries.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := s.call(ctx, func(ctx context.Context) error {
		v, err := s.next.Embed(ctx, text)
		out = v
		return err
	})
	return out, err
}

// EmbedBatch delegates with retries.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := s.call(ctx, func(ctx context.Context) error {
		v, err := s.next.EmbedBatch(ctx, texts)
		out = v
		return err
	})
	return out, err
}

// State returns the breaker state.
func (s *EmbeddingService) State() gobreaker.State {
	return s.breaker.State()
}

func (s *EmbeddingService) call(ctx context.Context, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%w: %s unavailable: %w", domain.ErrEmbeddingService, s.cfg.Name, err))
		case !retryable(err):
			return backoff.Permanent(err)
		}
		logger.Debug("%s: attempt %d failed: %v", s.cfg.Name, attempt, err)
		return err
	}, policy)
}

// retryable reports whether err may succeed on a later attempt.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, domain.ErrInvalidInput):
		return false
	}
	return true
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.next.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.next.ModelName()
}

// Ping delegates without retries so that validation reports failures promptly.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped service.
func (s *EmbeddingService) Close() error {
	return s.next.Close()
}
