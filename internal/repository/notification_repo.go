package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/heartline/internal/db"
)

// ErrConcurrentUpdate reports rows that changed between a locked read and
// the write that followed it; the transaction must be rolled back.
var ErrConcurrentUpdate = errors.New("rows changed concurrently")

// "read" is reserved in MySQL; map conditions let gorm quote it per dialect.
var unread = map[string]any{"read": false}

// NotificationRepository provides data access methods for the Notification
// model. Every query is scoped to the recipient.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

func (r *NotificationRepository) Insert(ctx context.Context, notifications ...*db.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(notifications).Error
}

// List returns the notifications of userID, newest first.
//
// Behavior:
//   - unreadOnly restricts the result to read = false.
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination.
func (r *NotificationRepository) List(ctx context.Context, userID string, unreadOnly bool, paginationToken *string, limit int) ([]db.Notification, *string, error) {
	query := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where(unread)
	}

	query, err := withCursor(query, paginationToken, "created_at", "id", true)
	if err != nil {
		return nil, nil, err
	}

	var out []db.Notification
	if err := query.Limit(limit + 1).Find(&out).Error; err != nil {
		return nil, nil, err
	}
	out, next := nextPage(out, limit, func(n db.Notification) (string, time.Time) { return n.ID, n.CreatedAt })
	return out, next, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ?", userID).
		Where(unread).
		Count(&n).Error
	return n, err
}

// CountFor counts the notifications of a type addressed to userID.
func (r *NotificationRepository) CountFor(ctx context.Context, userID, typ string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("user_id = ? AND type = ?", userID, typ).
		Count(&n).Error
	return n, err
}

// MarkRead flips the given unread notifications of userID to read and
// returns the rows that changed. Ids owned by someone else are ignored.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) ([]db.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.markRead(ctx, userID, ids)
}

// MarkAllRead flips every unread notification of userID to read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) ([]db.Notification, error) {
	return r.markRead(ctx, userID, nil)
}

// markRead locks the unread rows it selects, so two concurrent calls never
// both report the same notification as changed. Run it inside a transaction.
func (r *NotificationRepository) markRead(ctx context.Context, userID string, ids []string) ([]db.Notification, error) {
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Where(unread)
	if ids != nil {
		query = query.Where("id IN ?", ids)
	}

	var rows []db.Notification
	if err := query.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	changed := make([]string, 0, len(rows))
	for i := range rows {
		changed = append(changed, rows[i].ID)
		rows[i].Read = true
	}
	res := r.db.WithContext(ctx).
		Model(&db.Notification{}).
		Where("id IN ?", changed).
		Where(unread).
		Update("read", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(changed)) {
		return nil, fmt.Errorf("%w: %d of %d notifications changed concurrently",
			ErrConcurrentUpdate, int64(len(changed))-res.RowsAffected, len(changed))
	}
	return rows, nil
}

// Delete removes a notification owned by userID and returns it.
// Returns gorm.ErrRecordNotFound when it does not exist or is not owned.
func (r *NotificationRepository) Delete(ctx context.Context, userID, id string) (*db.Notification, error) {
	var n db.Notification
	if err := r.db.WithContext(ctx).Take(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&db.Notification{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// DeleteForUser removes every notification addressed to userID.
func (r *NotificationRepository) DeleteForUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Delete(&db.Notification{}, "user_id = ?", userID).Error
}
