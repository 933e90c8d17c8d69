package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/metrics"
	"github.com/oggyb/heartline/internal/repository"
)

// Relay moves committed outbox events to a Publisher in commit order.
type Relay struct {
	repo    *repository.OutboxRepository
	pub     Publisher
	batch   int
	log     *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	kick chan struct{}
}

func NewRelay(database *gorm.DB, pub Publisher, batch int, log *slog.Logger, m *metrics.Metrics) *Relay {
	if batch <= 0 {
		batch = 100
	}
	return &Relay{
		repo:    repository.NewOutboxRepository(database),
		pub:     pub,
		batch:   batch,
		log:     log,
		metrics: m,
		kick:    make(chan struct{}, 1),
	}
}

// Flush publishes every pending event and returns how many were sent.
//
// Behavior:
//   - Events are read in id order and claimed one by one; an event claimed
//     by another relay instance is skipped.
//   - A publish failure stops the flush; the claimed event is logged and
//     not retried (subscribers recover by re-fetching).
func (r *Relay) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	for {
		events, err := r.repo.Pending(ctx, r.batch)
		if err != nil {
			return sent, fmt.Errorf("load outbox: %w", err)
		}
		if len(events) == 0 {
			return sent, nil
		}

		for _, e := range events {
			claimed, err := r.repo.Claim(ctx, e.ID, time.Now().UTC())
			if err != nil {
				return sent, fmt.Errorf("claim outbox event %d: %w", e.ID, err)
			}
			if !claimed {
				continue
			}
			c := FromEvent(e)
			if err := r.pub.Publish(ctx, c); err != nil {
				r.log.Error("publish change failed", "event_id", c.ID, "table", c.Table, "err", err)
				return sent, fmt.Errorf("publish %s: %w", c.ID, err)
			}
			r.metrics.ChangesPublishedTotal.WithLabelValues(c.Table).Inc()
			sent++
		}

		if len(events) < r.batch {
			return sent, nil
		}
	}
}

// Kick asks a running relay loop to flush now.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run flushes on every tick or kick until ctx is done. Published events
// older than retention are purged once per hour.
func (r *Relay) Run(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	purge := time.NewTicker(time.Hour)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		case <-purge.C:
			if n, err := r.repo.Purge(ctx, time.Now().UTC().Add(-retention)); err != nil {
				r.log.Warn("purge outbox failed", "err", err)
			} else if n > 0 {
				r.log.Debug("purged outbox", "rows", n)
			}
			continue
		}
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("relay flush failed", "err", err)
		}
	}
}
