package realtime

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/repository"
)

// Outbox records change events on the transaction it was created for.
type Outbox struct {
	repo *repository.OutboxRepository
}

func NewOutbox(tx *gorm.DB) *Outbox {
	return &Outbox{repo: repository.NewOutboxRepository(tx)}
}

// Record appends one event per row, all with the same op.
func (o *Outbox) Record(ctx context.Context, op Op, rows ...any) error {
	events := make([]*db.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		e, err := NewEvent(op, row)
		if err != nil {
			return err
		}
		events = append(events, e)
	}
	return o.repo.Append(ctx, events...)
}
