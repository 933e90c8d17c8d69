package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/db"
)

// MessageRepository provides data access methods for the Message model.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Insert(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*db.Message, error) {
	var m db.Message
	if err := r.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns the messages of a match, newest first.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC; clients reverse for display.
//   - Supports cursor-based pagination toward older messages.
//
// Example:
//
//	repo.List(ctx, matchID, nil, 50)
func (r *MessageRepository) List(ctx context.Context, matchID string, paginationToken *string, limit int) ([]db.Message, *string, error) {
	query := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ?", matchID)

	query, err := withCursor(query, paginationToken, "created_at", "id", true)
	if err != nil {
		return nil, nil, err
	}

	var msgs []db.Message
	if err := query.Limit(limit + 1).Find(&msgs).Error; err != nil {
		return nil, nil, err
	}
	msgs, next := nextPage(msgs, limit, func(m db.Message) (string, time.Time) { return m.ID, m.CreatedAt })
	return msgs, next, nil
}

// MarkRead stamps read_at on every unread message of the match that was
// sent to readerID, and returns the updated rows.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID string, at time.Time) ([]db.Message, error) {
	var unread []db.Message
	if err := r.db.WithContext(ctx).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", matchID, readerID).
		Order("created_at ASC").
		Find(&unread).Error; err != nil {
		return nil, err
	}
	if len(unread) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(unread))
	for i := range unread {
		ids = append(ids, unread[i].ID)
		unread[i].ReadAt = &at
	}
	if err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id IN ?", ids).
		Update("read_at", at).Error; err != nil {
		return nil, err
	}
	return unread, nil
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&db.Message{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteForMatches removes every message of the given matches.
func (r *MessageRepository) DeleteForMatches(ctx context.Context, matchIDs []string) error {
	if len(matchIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&db.Message{}, "match_id IN ?", matchIDs).Error
}
