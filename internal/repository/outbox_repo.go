package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/db"
)

// OutboxRepository stores change events written in the same transaction as
// the rows they describe.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(database *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: database}
}

func (r *OutboxRepository) Append(ctx context.Context, events ...*db.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(events).Error
}

// Pending returns up to limit unpublished events in commit (id) order.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]db.OutboxEvent, error) {
	var events []db.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Claim marks one event as published. It returns false when another relay
// already claimed it.
func (r *OutboxRepository) Claim(ctx context.Context, id uint64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", id).
		Update("published_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Purge drops events published before cutoff.
func (r *OutboxRepository) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&db.OutboxEvent{})
	return res.RowsAffected, res.Error
}
