package tradeapi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/navid-fn/tradesniper/internal/failure"
	"github.com/navid-fn/tradesniper/internal/jsonvalue"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

// Fetcher performs a single listing detail request.
type Fetcher interface {
	Fetch(ctx context.Context, tradeID string, cred models.Credential) (jsonvalue.Value, error)
}

// CredentialSource supplies the credential current at the moment of the call.
type CredentialSource interface {
	Get() models.Credential
}

// FetchResult is what a queued fetch resolves to.
type FetchResult struct {
	TradeID string
	Body    jsonvalue.Value
	Err     error
}

type fetchRequest struct {
	tradeID    string
	enqueuedAt time.Time
	done       chan FetchResult
}

// Queue serialises fetches in arrival order. Bursts of trade ids are kept rather than
// dropped; one goroutine drains them while the governor spaces the calls.
type Queue struct {
	fetcher Fetcher
	creds   CredentialSource
	logger  *logrus.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	pending []*fetchRequest
	wake    chan struct{}
}

// NewQueue creates a queue. Call Run to start draining.
func NewQueue(fetcher Fetcher, creds CredentialSource, logger *logrus.Logger) *Queue {
	return &Queue{
		fetcher: fetcher,
		creds:   creds,
		logger:  logger,
		sleep:   sleepContext,
		wake:    make(chan struct{}, 1),
	}
}

// SetSleep replaces the wait used between local cooldown retries (tests).
func (q *Queue) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	q.sleep = fn
}

// Submit enqueues tradeID. The returned channel receives exactly one result.
func (q *Queue) Submit(tradeID string) <-chan FetchResult {
	req := &fetchRequest{
		tradeID:    tradeID,
		enqueuedAt: time.Now(),
		done:       make(chan FetchResult, 1),
	}

	q.mu.Lock()
	q.pending = append(q.pending, req)
	n := len(q.pending)
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"trade_id":     tradeID,
		"queue_length": n,
	}).Debug("Fetch queued")

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return req.done
}

// Fetch enqueues tradeID and waits for its result. Cancelling ctx stops the wait,
// not the queued request.
func (q *Queue) Fetch(ctx context.Context, tradeID string) (jsonvalue.Value, error) {
	select {
	case res := <-q.Submit(tradeID):
		return res.Body, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of requests waiting to be drained.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run drains the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("Fetch queue started")
	for {
		req := q.next()
		if req == nil {
			select {
			case <-ctx.Done():
				q.logger.Info("Fetch queue stopped")
				return nil
			case <-q.wake:
				continue
			}
		}

		res, ok := q.drain(ctx, req)
		if !ok {
			return nil
		}
		req.done <- res
	}
}

func (q *Queue) next() *fetchRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	req := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return req
}

// drain fetches one item, waiting out local cooldowns. It reports false if ctx ended.
func (q *Queue) drain(ctx context.Context, req *fetchRequest) (FetchResult, bool) {
	for {
		body, err := q.fetcher.Fetch(ctx, req.tradeID, q.creds.Get())

		var local *failure.RateLimitedLocallyError
		if errors.As(err, &local) {
			// no request left the process; hold the head of the queue and try again
			if err := q.sleep(ctx, local.RetryAfter); err != nil {
				return FetchResult{}, false
			}
			continue
		}

		if err != nil && ctx.Err() != nil {
			return FetchResult{}, false
		}

		q.logger.WithFields(logrus.Fields{
			"trade_id": req.tradeID,
			"waited":   time.Since(req.enqueuedAt).Round(time.Millisecond),
		}).Debug("Fetch drained")

		return FetchResult{TradeID: req.tradeID, Body: body, Err: err}, true
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
