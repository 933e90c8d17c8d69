package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/heartline/internal/db"
)

// StatusRepository stores presence rows, one per user.
type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(database *gorm.DB) *StatusRepository {
	return &StatusRepository{db: database}
}

func (r *StatusRepository) WithTx(tx *gorm.DB) *StatusRepository {
	return &StatusRepository{db: tx}
}

// Upsert writes the presence row of s.UserID.
//
// Behavior:
//   - If the row does not exist → it is inserted.
//   - If it exists → is_online, last_seen, is_typing and updated_at are
//     overwritten.
//
// Example:
//
//	repo.Upsert(ctx, &db.UserStatus{UserID: "u1", IsOnline: true, LastSeen: now})
func (r *StatusRepository) Upsert(ctx context.Context, s *db.UserStatus) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_seen", "is_typing", "updated_at"}),
		}).
		Create(s).Error
}

func (r *StatusRepository) Get(ctx context.Context, userID string) (*db.UserStatus, error) {
	var s db.UserStatus
	if err := r.db.WithContext(ctx).Take(&s, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StatusRepository) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Delete(&db.UserStatus{}, "user_id = ?", userID).Error
}
