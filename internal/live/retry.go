package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/factorport/internal/metrics"
)

// RetryConfig bounds the exponential backoff applied to external I/O.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // Total attempts including the first (default: 4)
	BaseBackoff time.Duration `yaml:"base_backoff"` // First retry delay (default: 250ms)
	MaxBackoff  time.Duration `yaml:"max_backoff"`  // Delay ceiling (default: 5s)
}

// DefaultRetryConfig returns the default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseBackoff: 250 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
	}
}

// Validate rejects broken retry settings.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.BaseBackoff <= 0 || c.MaxBackoff < c.BaseBackoff {
		return fmt.Errorf("invalid backoff range [%v, %v]", c.BaseBackoff, c.MaxBackoff)
	}
	return nil
}

// withRetry runs fn with bounded exponential backoff. A timed-out call counts
// as a failure for retry purposes, never as a silent success. After the last
// attempt the error escalates to the caller, which treats it as fatal.
func withRetry(ctx context.Context, op string, cfg RetryConfig, collector *metrics.Collector, fn func(ctx context.Context) error) error {
	backoff := cfg.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if collector != nil {
			collector.IORetries.WithLabelValues(op).Inc()
		}
		log.Warn().
			Err(lastErr).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("External call failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}
