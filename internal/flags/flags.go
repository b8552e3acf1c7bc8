// Package flags answers "is this feature enabled right now" for the purchase pipeline.
// The answer comes from an external collaborator that may be slow or absent, so every
// query is bounded by a timeout with a fixed per-flag default.
package flags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Flag names a runtime feature switch.
type Flag string

const (
	Teleport Flag = "teleport"
	Autobuy  Flag = "autobuy"
)

// DefaultTimeout bounds each query.
const DefaultTimeout = time.Second

// ErrUnset is returned by an Asker that has no answer for a flag.
var ErrUnset = errors.New("flag not set")

// Default is the value used when the collaborator does not answer in time.
// Teleport fails open, autobuy fails closed so no clicks happen unasked.
func Default(f Flag) bool {
	switch f {
	case Teleport:
		return true
	default:
		return false
	}
}

// Asker is the external collaborator holding the switches.
type Asker interface {
	Ask(ctx context.Context, f Flag) (bool, error)
}

// Querier asks with a timeout and falls back to Default.
type Querier struct {
	asker   Asker
	timeout time.Duration
	logger  *logrus.Logger
}

// NewQuerier creates a querier. A zero timeout means DefaultTimeout.
func NewQuerier(asker Asker, timeout time.Duration, logger *logrus.Logger) *Querier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Querier{asker: asker, timeout: timeout, logger: logger}
}

type answer struct {
	enabled bool
	err     error
}

// Enabled returns the collaborator's answer, or Default(f) on timeout or error.
func (q *Querier) Enabled(ctx context.Context, f Flag) bool {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	ch := make(chan answer, 1)
	go func() {
		enabled, err := q.asker.Ask(ctx, f)
		ch <- answer{enabled: enabled, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			q.logger.WithFields(logrus.Fields{
				"flag":    f,
				"error":   a.err,
				"default": Default(f),
			}).Debug("Flag query failed, using default")
			return Default(f)
		}
		return a.enabled
	case <-ctx.Done():
		q.logger.WithFields(logrus.Fields{
			"flag":    f,
			"default": Default(f),
		}).Warn("Flag query timed out, using default")
		return Default(f)
	}
}

// IsTeleportEnabled defaults to true.
func (q *Querier) IsTeleportEnabled(ctx context.Context) bool {
	return q.Enabled(ctx, Teleport)
}

// IsAutobuyEnabled defaults to false.
func (q *Querier) IsAutobuyEnabled(ctx context.Context) bool {
	return q.Enabled(ctx, Autobuy)
}

// Memory is an Asker backed by values set through the control API.
type Memory struct {
	mu        sync.RWMutex
	values    map[Flag]bool
	listeners []func(Flag, bool)
}

// NewMemory creates an asker with no flags set.
func NewMemory() *Memory {
	return &Memory{values: make(map[Flag]bool)}
}

func (m *Memory) Ask(_ context.Context, f Flag) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[f]
	if !ok {
		return false, ErrUnset
	}
	return v, nil
}

// Set stores a value and notifies listeners.
func (m *Memory) Set(f Flag, enabled bool) {
	m.mu.Lock()
	m.values[f] = enabled
	listeners := append([]func(Flag, bool){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(f, enabled)
	}
}

// OnChange registers fn to run after every Set.
func (m *Memory) OnChange(fn func(Flag, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Snapshot returns the effective value of every known flag.
func (m *Memory) Snapshot() map[Flag]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := map[Flag]bool{Teleport: Default(Teleport), Autobuy: Default(Autobuy)}
	for f, v := range m.values {
		out[f] = v
	}
	return out
}
