package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/observability"
)

const defaultBreachBatch = 200

// BreachMarker flags overdue tickets and reports how many were flagged.
type BreachMarker interface {
	MarkBreachedTickets(ctx context.Context, batchSize int) (int, error)
}

// BreachMonitor periodically flags open tickets whose due date has passed.
type BreachMonitor struct {
	marker   BreachMarker
	interval time.Duration
	batch    int
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewBreachMonitor constructs a monitor that scans every interval.
func NewBreachMonitor(marker BreachMarker, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *BreachMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreachMonitor{
		marker:   marker,
		interval: interval,
		batch:    defaultBreachBatch,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (m *BreachMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("sla breach monitor started", zap.Duration("interval", m.interval))
	for {
		m.Scan(ctx)
		select {
		case <-ctx.Done():
			m.logger.Info("sla breach monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

// Scan drains overdue tickets in batches. It returns the number flagged.
func (m *BreachMonitor) Scan(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := m.marker.MarkBreachedTickets(ctx, m.batch)
		if err != nil {
			m.logger.Error("sla breach scan failed", zap.Error(err))
			break
		}
		total += n
		if n < m.batch {
			break
		}
	}
	if total > 0 {
		m.metrics.RecordBreaches(total)
		m.logger.Info("sla breaches flagged", zap.Int("count", total))
	}
	return total
}
