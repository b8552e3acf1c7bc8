package teleport

import (
	"github.com/navid-fn/tradesniper/internal/models"

	"github.com/sirupsen/logrus"
)

// Reporter receives every finished attempt. Implementations must not block for long.
type Reporter interface {
	Report(rec models.AttemptRecord)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(rec models.AttemptRecord)

func (f ReporterFunc) Report(rec models.AttemptRecord) { f(rec) }

// MultiReporter fans a record out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(rec models.AttemptRecord) {
	for _, r := range m {
		r.Report(rec)
	}
}

// LogReporter writes one log line per attempt.
type LogReporter struct {
	logger *logrus.Logger
}

func NewLogReporter(logger *logrus.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) Report(rec models.AttemptRecord) {
	entry := l.logger.WithFields(logrus.Fields{
		"attempt":     rec.ID,
		"trade_id":    rec.TradeID,
		"item":        rec.Item,
		"account":     rec.Account,
		"duration_ms": rec.Duration().Milliseconds(),
	})

	if rec.Succeeded() {
		entry.Info("Purchase attempt succeeded")
		return
	}
	entry.WithFields(logrus.Fields{
		"reason": rec.Reason,
		"status": rec.Status,
		"error":  rec.Error,
	}).Warn("Purchase attempt failed")
}
