package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/opsdesk/ticket-rules/internal/service"
)

// OverdueSource lists overdue tickets and announces them.
type OverdueSource interface {
	OverdueTickets(ctx context.Context) ([]service.TicketSnapshot, error)
	PublishOverdue(ctx context.Context, snap service.TicketSnapshot)
}

// SLAWatcher periodically announces tickets that became overdue. Each ticket
// is announced once per overdue episode; it is announced again after it
// leaves the overdue stage and re-enters it.
type SLAWatcher struct {
	source   OverdueSource
	logger   *zap.Logger
	interval time.Duration

	mu        sync.Mutex
	announced map[string]struct{}
}

// NewSLAWatcher builds a watcher polling every interval.
func NewSLAWatcher(source OverdueSource, logger *zap.Logger, interval time.Duration) *SLAWatcher {
	return &SLAWatcher{
		source:    source,
		logger:    logger,
		interval:  interval,
		announced: make(map[string]struct{}),
	}
}

// Run sweeps until ctx is cancelled.
func (w *SLAWatcher) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("sla watcher disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("sla sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep announces newly overdue tickets and returns how many were announced.
func (w *SLAWatcher) Sweep(ctx context.Context) (int, error) {
	overdue, err := w.source.OverdueTickets(ctx)
	if err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]struct{}, len(overdue))
	announced := 0
	for _, snap := range overdue {
		current[snap.Ticket.ID] = struct{}{}
		if _, seen := w.announced[snap.Ticket.ID]; seen {
			continue
		}
		w.source.PublishOverdue(ctx, snap)
		announced++
	}
	w.announced = current
	if announced > 0 {
		w.logger.Info("overdue tickets announced", zap.Int("count", announced), zap.Int("overdue", len(overdue)))
	}
	return announced, nil
}
