package audit

import (
	"context"

	"github.com/wardenhq/warden/pkg/observability"
)

// InstrumentedLogger decorates a Logger with append counters. Appends
// run fire-and-forget in the background, so the counter is the only
// place a dropped entry shows up.
type InstrumentedLogger struct {
	logger  Logger
	metrics *observability.Metrics
}

// NewInstrumentedLogger wraps logger with metrics recording.
func NewInstrumentedLogger(logger Logger, metrics *observability.Metrics) *InstrumentedLogger {
	return &InstrumentedLogger{logger: logger, metrics: metrics}
}

// Append records an entry and counts the outcome by action.
func (l *InstrumentedLogger) Append(ctx context.Context, entry *Entry) error {
	err := l.logger.Append(ctx, entry)
	status := "ok"
	if err != nil {
		status = "error"
	}
	l.metrics.AuditAppendsTotal.WithLabelValues(string(entry.Action), status).Inc()
	return err
}

// History returns a customer's entries, newest first.
func (l *InstrumentedLogger) History(ctx context.Context, customerID string, limit int) ([]*Entry, error) {
	return l.logger.History(ctx, customerID, limit)
}
