package faulttolerance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig holds exponential backoff settings.
type RetryConfig struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64 // fraction of the delay, 0..1

	// Retryable reports whether err is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
}

// DefaultRetryConfig returns the backoff used for sink writes.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		Name:        name,
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2,
		Jitter:      0.1,
	}
}

// Retryer runs a function until it succeeds or attempts run out.
type Retryer struct {
	cfg    RetryConfig
	logger *logrus.Logger
}

// NewRetryer fills unset fields with defaults.
func NewRetryer(cfg RetryConfig, logger *logrus.Logger) *Retryer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.1
	}
	if cfg.Name == "" {
		cfg.Name = "retryer"
	}
	return &Retryer{cfg: cfg, logger: logger}
}

// Execute calls fn up to MaxAttempts times. An open breaker is never retried.
func (r *Retryer) Execute(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrBreakerOpen) || (r.cfg.Retryable != nil && !r.cfg.Retryable(err)) {
			return err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		r.logger.WithFields(logrus.Fields{
			"retryer": r.cfg.Name,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("attempt failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %d attempts failed: %w", r.cfg.Name, r.cfg.MaxAttempts, lastErr)
}

func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if d > float64(r.cfg.MaxDelay) {
		d = float64(r.cfg.MaxDelay)
	}
	if r.cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * r.cfg.Jitter * d
	}
	if d < float64(r.cfg.BaseDelay) {
		d = float64(r.cfg.BaseDelay)
	}
	return time.Duration(d)
}

// ExecuteWithBreaker retries fn behind b.
func (r *Retryer) ExecuteWithBreaker(ctx context.Context, b *Breaker, fn func() error) error {
	return r.Execute(ctx, func() error {
		return b.Execute(fn)
	})
}
