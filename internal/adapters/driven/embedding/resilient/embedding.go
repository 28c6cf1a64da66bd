// Package resilient wraps an embedding service with a per-call timeout,
// bounded retries with exponential backoff and an optional rate limit.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/ports/driven"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 10 * time.Second
)

// Config holds the retry policy.
type Config struct {
	// Timeout bounds each attempt (default: 30s).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the first backoff delay; it doubles on each retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// RatePerSecond limits calls to the wrapped service. Zero disables it.
	RatePerSecond float64
}

// EmbeddingService retries failed calls to the wrapped service.
// Calls that still fail return an error wrapping domain.ErrEmbeddingFailed.
type EmbeddingService struct {
	inner   driven.EmbeddingService
	cfg     Config
	limiter *rate.Limiter
}

// New wraps inner.
func New(inner driven.EmbeddingService, cfg Config) *EmbeddingService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}

	s := &EmbeddingService{inner: inner, cfg: cfg}
	if cfg.RatePerSecond > 0 {
		burst := max(1, int(cfg.RatePerSecond))
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return s
}

// Unwrap returns the wrapped service.
func (s *EmbeddingService) Unwrap() driven.EmbeddingService {
	return s.inner
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	var v []float32
	err := s.do(ctx, "embed", func(ctx context.Context) error {
		var err error
		v, err = s.inner.Embed(ctx, text)
		return err
	})
	return v, err
}

// EmbedBatch generates embeddings for multiple texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var vs [][]float32
	err := s.do(ctx, "embed batch", func(ctx context.Context) error {
		var err error
		vs, err = s.inner.EmbedBatch(ctx, texts)
		return err
	})
	return vs, err
}

func (s *EmbeddingService) do(ctx context.Context, op string, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoff(attempt)
			logger.Debug("%s: attempt %d failed (%v), retrying in %s", op, attempt, lastErr, delay)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		lastErr = call(callCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Retryable(lastErr) {
			break
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, lastErr)
}

func (s *EmbeddingService) backoff(attempt int) time.Duration {
	delay := s.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			return s.cfg.MaxDelay
		}
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retryable reports whether a failed embedding call may succeed if repeated:
// timeouts, network errors and provider errors flagged as retryable.
func Retryable(err error) bool {
	var perr *driven.ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped service once, without retries.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.inner.Ping(ctx)
}

// Close closes the wrapped service.
func (s *EmbeddingService) Close() error {
	return s.inner.Close()
}
