package faulttolerance

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HealthStatus is the outcome of a health check.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// CheckFunc checks one component.
type CheckFunc func(ctx context.Context) error

// HealthCheck is the last result of a named check.
type HealthCheck struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Critical  bool          `json:"critical"`
	LastCheck time.Time     `json:"last_check"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

type registeredCheck struct {
	HealthCheck
	fn CheckFunc
}

// HealthMonitor runs registered checks periodically. A failing critical check
// makes the whole service unhealthy; a failing optional one only degrades it.
type HealthMonitor struct {
	logger   *logrus.Logger
	interval time.Duration
	timeout  time.Duration

	mu     sync.RWMutex
	checks map[string]*registeredCheck
}

// NewHealthMonitor creates a monitor that runs its checks every interval.
func NewHealthMonitor(interval time.Duration, logger *logrus.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		logger:   logger,
		interval: interval,
		timeout:  5 * time.Second,
		checks:   make(map[string]*registeredCheck),
	}
}

// AddCheck registers a check. Checks start healthy until they first run.
func (hm *HealthMonitor) AddCheck(name string, critical bool, fn CheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = &registeredCheck{
		HealthCheck: HealthCheck{Name: name, Status: HealthHealthy, Critical: critical},
		fn:          fn,
	}
}

// Run executes all checks immediately and then on every tick until ctx is done.
func (hm *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	hm.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hm.CheckNow(ctx)
		}
	}
}

// CheckNow runs every check once, concurrently.
func (hm *HealthMonitor) CheckNow(ctx context.Context) {
	hm.mu.RLock()
	checks := make([]*registeredCheck, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hm.run(ctx, c)
		}()
	}
	wg.Wait()
}

func (hm *HealthMonitor) run(ctx context.Context, c *registeredCheck) {
	if c.fn == nil {
		return
	}
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, hm.timeout)
	err := c.fn(checkCtx)
	cancel()

	hm.mu.Lock()
	defer hm.mu.Unlock()

	prev := c.Status
	c.LastCheck = start
	c.Duration = time.Since(start)
	if err != nil {
		c.Status = HealthUnhealthy
		c.Error = err.Error()
		if prev != HealthUnhealthy {
			hm.logger.WithField("check", c.Name).WithError(err).Error("health check failed")
		}
		return
	}
	c.Status = HealthHealthy
	c.Error = ""
	if prev != HealthHealthy {
		hm.logger.WithField("check", c.Name).Info("health check recovered")
	}
}

// Checks returns a copy of every check result.
func (hm *HealthMonitor) Checks() map[string]HealthCheck {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	out := make(map[string]HealthCheck, len(hm.checks))
	for name, c := range hm.checks {
		out[name] = c.HealthCheck
	}
	return out
}

// Overall folds every check into one status.
func (hm *HealthMonitor) Overall() HealthStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := HealthHealthy
	for _, c := range hm.checks {
		if c.Status != HealthUnhealthy {
			continue
		}
		if c.Critical {
			return HealthUnhealthy
		}
		status = HealthDegraded
	}
	return status
}
