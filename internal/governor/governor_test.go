package governor

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFirstAcquireGranted(t *testing.T) {
	g := New(Config{Now: newFakeClock().Now})

	for _, ch := range []Channel{Fetch, Whisper} {
		granted, retry := g.TryAcquire(ch)
		if !granted {
			t.Errorf("Expected first %s acquire to be granted", ch)
		}
		if retry != 0 {
			t.Errorf("Expected zero retry, got %v", retry)
		}
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	g := New(Config{Now: newFakeClock().Now})

	g.TryAcquire(Fetch)
	if granted, _ := g.TryAcquire(Whisper); !granted {
		t.Error("Whisper should not be blocked by a fetch")
	}
}

func TestMinimumSpacing(t *testing.T) {
	tests := []struct {
		ch       Channel
		interval time.Duration
	}{
		{Fetch, 2 * time.Second},
		{Whisper, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(string(tt.ch), func(t *testing.T) {
			clock := newFakeClock()
			g := New(Config{Now: clock.Now})

			var grants []time.Time
			// poll every 137ms for a minute
			for i := 0; i < 440; i++ {
				if granted, _ := g.TryAcquire(tt.ch); granted {
					grants = append(grants, clock.Now())
				}
				clock.Advance(137 * time.Millisecond)
			}

			if len(grants) < 2 {
				t.Fatalf("Expected several grants, got %d", len(grants))
			}
			for i := 1; i < len(grants); i++ {
				if gap := grants[i].Sub(grants[i-1]); gap < tt.interval {
					t.Errorf("Grants %d and %d only %v apart", i-1, i, gap)
				}
			}
		})
	}
}

func TestRetryAfterRoundTrip(t *testing.T) {
	for _, ch := range []Channel{Fetch, Whisper} {
		t.Run(string(ch), func(t *testing.T) {
			clock := newFakeClock()
			g := New(Config{Now: clock.Now})

			g.TryAcquire(ch)
			for _, step := range []time.Duration{0, 333 * time.Millisecond, 1234 * time.Millisecond} {
				clock.Advance(step)
				granted, retry := g.TryAcquire(ch)
				if granted {
					continue
				}
				if retry <= 0 || retry > g.Interval(ch)+time.Millisecond {
					t.Fatalf("Unexpected retryAfter %v", retry)
				}
				if retry%time.Millisecond != 0 {
					t.Errorf("Expected whole milliseconds, got %v", retry)
				}

				clock.Advance(retry)
				if granted, _ := g.TryAcquire(ch); !granted {
					t.Errorf("Expected grant after waiting %v", retry)
				}
			}
		})
	}
}

func TestDeniedReportsFullInterval(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{Now: clock.Now})

	g.TryAcquire(Whisper)
	granted, retry := g.TryAcquire(Whisper)
	if granted {
		t.Fatal("Second immediate whisper should be denied")
	}
	if retry < 9999*time.Millisecond || retry > 10001*time.Millisecond {
		t.Errorf("Expected ~10s retry, got %v", retry)
	}
}

func TestSnapshot(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{Now: clock.Now})

	g.TryAcquire(Fetch)
	snap := g.Snapshot()
	if snap[Whisper] != 0 {
		t.Errorf("Expected whisper ready, got %v", snap[Whisper])
	}
	if snap[Fetch] <= 0 {
		t.Errorf("Expected fetch wait, got %v", snap[Fetch])
	}

	// Snapshot must not consume a permit
	if granted, _ := g.TryAcquire(Whisper); !granted {
		t.Error("Snapshot consumed a whisper permit")
	}
}

func TestConcurrentAcquireGrantsOnce(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{Now: clock.Now})

	var wg sync.WaitGroup
	var mu sync.Mutex
	grants := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.TryAcquire(Fetch); ok {
				mu.Lock()
				grants++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if grants != 1 {
		t.Errorf("Expected 1 grant at a frozen instant, got %d", grants)
	}
}
