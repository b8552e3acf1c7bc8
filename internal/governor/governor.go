// Package governor enforces minimum spacing between outbound trade-site calls.
// One Governor is built per process and shared by every caller so that all
// requests made with the same account draw from the same budget.
package governor

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Channel is an independently paced action class.
type Channel string

const (
	Fetch   Channel = "fetch"
	Whisper Channel = "whisper"
)

const (
	DefaultFetchInterval   = 2 * time.Second
	DefaultWhisperInterval = 10 * time.Second
)

// Config holds the minimum spacing per channel.
type Config struct {
	FetchInterval   time.Duration
	WhisperInterval time.Duration

	// Now is the clock used for every decision. Defaults to time.Now.
	Now func() time.Time
}

// Governor hands out permits per channel. A permit is consumed at acquire time,
// so slow requests that overlap cannot bypass the spacing.
type Governor struct {
	limiters  map[Channel]*rate.Limiter
	intervals map[Channel]time.Duration
	now       func() time.Time
	mu        sync.Mutex
}

// New builds a governor with a burst of one permit per channel.
func New(cfg Config) *Governor {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = DefaultFetchInterval
	}
	if cfg.WhisperInterval <= 0 {
		cfg.WhisperInterval = DefaultWhisperInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Governor{
		limiters: map[Channel]*rate.Limiter{
			Fetch:   rate.NewLimiter(rate.Every(cfg.FetchInterval), 1),
			Whisper: rate.NewLimiter(rate.Every(cfg.WhisperInterval), 1),
		},
		intervals: map[Channel]time.Duration{
			Fetch:   cfg.FetchInterval,
			Whisper: cfg.WhisperInterval,
		},
		now: cfg.Now,
	}
}

// TryAcquire takes a permit for ch if one is available. When denied it returns the
// wait, rounded up to whole milliseconds, after which the next call will be granted
// provided nobody else acquires in between.
func (g *Governor) TryAcquire(ch Channel) (granted bool, retryAfter time.Duration) {
	lim, ok := g.limiters[ch]
	if !ok {
		panic(fmt.Sprintf("governor: unknown channel %q", ch))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if lim.AllowN(now, 1) {
		return true, 0
	}
	return false, retryAfterLocked(lim, now)
}

// Interval returns the configured spacing for ch.
func (g *Governor) Interval(ch Channel) time.Duration {
	return g.intervals[ch]
}

// Snapshot returns the current wait per channel without consuming anything.
func (g *Governor) Snapshot() map[Channel]time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make(map[Channel]time.Duration, len(g.limiters))
	for ch, lim := range g.limiters {
		if lim.TokensAt(now) >= 1 {
			out[ch] = 0
			continue
		}
		out[ch] = retryAfterLocked(lim, now)
	}
	return out
}

func retryAfterLocked(lim *rate.Limiter, now time.Time) time.Duration {
	missing := 1 - lim.TokensAt(now)
	if missing <= 0 {
		return time.Millisecond
	}
	seconds := missing / float64(lim.Limit())
	wait := time.Duration(seconds * float64(time.Second))
	wait = wait.Truncate(time.Millisecond)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	// float rounding can leave the bucket a hair short of a full token
	for lim.TokensAt(now.Add(wait)) < 1 {
		wait += time.Millisecond
	}
	return wait
}
