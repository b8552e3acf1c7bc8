package autobuy

import (
	"context"
	"sync"
	"time"

	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

// DefaultClickInterval is the click cadence.
const DefaultClickInterval = 200 * time.Millisecond

// Status is a snapshot of the session.
type Status struct {
	State    models.AutobuyState `json:"state"`
	Active   bool                `json:"active"`
	Paused   bool                `json:"paused"`
	Position *models.Stash       `json:"position,omitempty"`
	Pixel    *Point              `json:"pixel,omitempty"`
	Clicks   int                 `json:"clicks"`
}

// Session clicks one grid cell at a fixed cadence until stopped.
// Only one position is clicked at a time; starting again moves the session.
type Session struct {
	grid     Grid
	clicker  Clicker
	interval time.Duration
	logger   *logrus.Logger

	// ops serialises Start and Stop
	ops sync.Mutex

	mu       sync.Mutex
	state    models.AutobuyState
	position models.Stash
	pixel    Point
	clicks   int
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSession creates an idle session.
func NewSession(grid Grid, clicker Clicker, interval time.Duration, logger *logrus.Logger) *Session {
	if interval <= 0 {
		interval = DefaultClickInterval
	}
	return &Session{
		grid:     grid,
		clicker:  clicker,
		interval: interval,
		logger:   logger,
	}
}

// Start begins clicking at cell (x, y). A running session is stopped first.
func (s *Session) Start(x, y int) error {
	pixel, err := s.grid.PixelFor(x, y)
	if err != nil {
		return err
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	s.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.state = models.AutobuyActive
	s.position = models.Stash{X: x, Y: y}
	s.pixel = pixel
	s.clicks = 0
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"grid_x":  x,
		"grid_y":  y,
		"pixel_x": pixel.X,
		"pixel_y": pixel.Y,
	}).Info("Auto-buy started")

	go s.loop(ctx, pixel, done)
	return nil
}

// Stop halts clicking and waits for the loop to exit. Safe to call when idle.
func (s *Session) Stop() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stop()
}

func (s *Session) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	wasActive := s.state != models.AutobuyIdle
	s.state = models.AutobuyIdle
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if wasActive {
		s.logger.Info("Auto-buy stopped")
	}
}

// Pause keeps the session but skips clicks.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.AutobuyActive {
		s.state = models.AutobuyPaused
		s.logger.Info("Auto-buy paused")
	}
}

// Resume continues a paused session.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == models.AutobuyPaused {
		s.state = models.AutobuyActive
		s.logger.Info("Auto-buy resumed")
	}
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:  s.state,
		Active: s.state != models.AutobuyIdle,
		Paused: s.state == models.AutobuyPaused,
		Clicks: s.clicks,
	}
	if st.Active {
		pos, pix := s.position, s.pixel
		st.Position = &pos
		st.Pixel = &pix
	}
	return st
}

func (s *Session) loop(ctx context.Context, pixel Point, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			paused := s.state == models.AutobuyPaused
			s.mu.Unlock()
			if paused {
				continue
			}

			if err := s.clicker.Click(ctx, pixel); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.WithField("error", err).Warn("Click failed")
				continue
			}

			s.mu.Lock()
			s.clicks++
			s.mu.Unlock()
		}
	}
}
