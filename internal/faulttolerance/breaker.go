// Package faulttolerance guards the optional sinks (history store, event
// publisher) so that an unreachable dependency never stalls a purchase.
package faulttolerance

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState is the position of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned without calling the guarded function.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	Name             string
	MaxFailures      int           // consecutive failures before opening
	OpenTimeout      time.Duration // time spent open before a trial call
	SuccessThreshold int           // consecutive half-open successes needed to close

	Now func() time.Time
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cfg    BreakerConfig
	logger *logrus.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig, logger *logrus.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Name == "" {
		cfg.Name = "breaker"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg, logger: logger}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.cfg.Now().Sub(b.lastFailure) < b.cfg.OpenTimeout {
			return false
		}
		b.setState(BreakerHalfOpen)
		b.successes = 0
		return true
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		b.lastFailure = b.cfg.Now()
		switch b.state {
		case BreakerClosed:
			if b.failures >= b.cfg.MaxFailures {
				b.setState(BreakerOpen)
			}
		case BreakerHalfOpen:
			b.setState(BreakerOpen)
		}
		return
	}

	b.failures = 0
	b.successes++
	if b.state == BreakerHalfOpen && b.successes >= b.cfg.SuccessThreshold {
		b.setState(BreakerClosed)
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(state BreakerState) {
	if b.state == state {
		return
	}
	b.logger.WithFields(logrus.Fields{
		"breaker":  b.cfg.Name,
		"from":     b.state.String(),
		"to":       state.String(),
		"failures": b.failures,
	}).Warn("circuit breaker state changed")
	b.state = state
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerStats is a point-in-time view of a breaker.
type BreakerStats struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitzero"`
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:        b.cfg.Name,
		State:       b.state.String(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
}
