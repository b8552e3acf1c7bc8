package history

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/navid-fn/tradesniper/internal/faulttolerance"
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

// Sink persists a batch of attempts.
type Sink interface {
	InsertAttempts(ctx context.Context, records []models.AttemptRecord) error
}

// RecorderConfig holds batching settings.
type RecorderConfig struct {
	BatchSize    int
	BatchTimeout time.Duration

	// QueueSize bounds the records waiting for the next flush.
	QueueSize int
}

// Recorder batches attempts into a Sink. Report never blocks the pipeline:
// when the queue is full the record is dropped and counted.
type Recorder struct {
	sink    Sink
	cfg     RecorderConfig
	retryer *faulttolerance.Retryer
	breaker *faulttolerance.Breaker
	logger  *logrus.Logger

	queue   chan models.AttemptRecord
	dropped atomic.Int64
	written atomic.Int64
}

func NewRecorder(sink Sink, cfg RecorderConfig, breaker *faulttolerance.Breaker, logger *logrus.Logger) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.BatchSize * 4
	}
	return &Recorder{
		sink:    sink,
		cfg:     cfg,
		retryer: faulttolerance.NewRetryer(faulttolerance.DefaultRetryConfig("history"), logger),
		breaker: breaker,
		logger:  logger,
		queue:   make(chan models.AttemptRecord, cfg.QueueSize),
	}
}

// Report implements teleport.Reporter.
func (r *Recorder) Report(rec models.AttemptRecord) {
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.logger.WithField("attempt", rec.ID).Warn("history queue full, dropping record")
	}
}

// Dropped is the number of records lost to a full queue or a failed flush.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written is the number of records persisted.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Run flushes on batch size or timeout until ctx is done, then drains what is queued.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.WithFields(logrus.Fields{
		"batch_size":    r.cfg.BatchSize,
		"batch_timeout": r.cfg.BatchTimeout,
	}).Info("starting history recorder")

	batch := make([]models.AttemptRecord, 0, r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		err := r.retryer.ExecuteWithBreaker(ctx, r.breaker, func() error {
			return r.sink.InsertAttempts(ctx, batch)
		})
		if err != nil {
			r.dropped.Add(int64(len(batch)))
			r.logger.WithError(err).WithField("count", len(batch)).Error("history flush failed")
		} else {
			r.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
		ticker.Reset(r.cfg.BatchTimeout)
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case rec := <-r.queue:
					batch = append(batch, rec)
				default:
					break drain
				}
			}
			drainCtx, cancel := context.WithTimeout(context.Background(), r.cfg.BatchTimeout)
			flush(drainCtx)
			cancel()
			return nil

		case <-ticker.C:
			flush(ctx)

		case rec := <-r.queue:
			batch = append(batch, rec)
			if len(batch) >= r.cfg.BatchSize {
				flush(ctx)
			}
		}
	}
}
