package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/heartline/internal/db"
)

// LikeRepository provides data access methods for the Like model.
// It encapsulates all queries on the directed like ledger.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// Insert adds a like liker -> liked unless one already exists for the pair.
//
// Behavior:
//   - If (liker_id, liked_id) does not exist → the row is inserted and
//     inserted is true.
//   - If it exists → nothing is written (conflict-ignore), inserted is false
//     and like is left as passed in.
//   - The unique index idx_likes_pair is the only arbiter; no pre-check.
//
// Example:
//
//	ok, err := repo.Insert(ctx, &db.Like{LikerID: a, LikedID: b})
func (r *LikeRepository) Insert(ctx context.Context, like *db.Like) (inserted bool, err error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "liker_id"}, {Name: "liked_id"}},
			DoNothing: true,
		}).
		Create(like)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Get returns the like liker -> liked or gorm.ErrRecordNotFound.
func (r *LikeRepository) Get(ctx context.Context, likerID, likedID string) (*db.Like, error) {
	var like db.Like
	err := r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Take(&like).Error
	if err != nil {
		return nil, err
	}
	return &like, nil
}

// SetSuper flips the super flag of an existing like in place.
func (r *LikeRepository) SetSuper(ctx context.Context, like *db.Like, super bool) error {
	if err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("id = ?", like.ID).
		Update("is_super_like", super).Error; err != nil {
		return err
	}
	like.IsSuperLike = super
	return nil
}

// Exists checks whether liker has liked liked.
//
// Behavior:
//   - Returns true if there exists a like row liker_id = X, liked_id = Y.
//   - Used by the match deriver for the reciprocity check.
//
// Example:
//
//	repo.Exists(ctx, b, a) // -> true if b liked a back
func (r *LikeRepository) Exists(ctx context.Context, likerID, likedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// Delete removes the like liker -> liked and returns the deleted row.
// Returns gorm.ErrRecordNotFound when there is nothing to delete.
func (r *LikeRepository) Delete(ctx context.Context, likerID, likedID string) (*db.Like, error) {
	like, err := r.Get(ctx, likerID, likedID)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Delete(&db.Like{}, "id = ?", like.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return like, nil
}

// ListLikers returns the likes the given user received.
//
// Behavior:
//   - Only likes where liked_id = X are returned.
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListLikers(ctx, "u42", nil, 20) // first 20 people who liked u42
func (r *LikeRepository) ListLikers(ctx context.Context, likedID string, paginationToken *string, limit int) ([]db.Like, *string, error) {
	query := r.db.WithContext(ctx).
		Table("likes l").
		Select("l.*").
		Where("l.liked_id = ?", likedID)

	return r.page(query, paginationToken, limit)
}

// ListNewLikers returns likes the given user received and has not returned.
//
// Behavior:
//   - Only likes where liked_id = X are considered.
//   - Excludes mutual likes (X already liked the liker back).
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination.
//
// Example:
//
//	repo.ListNewLikers(ctx, "u42", nil, 20) // pending one-way likes for u42
func (r *LikeRepository) ListNewLikers(ctx context.Context, likedID string, paginationToken *string, limit int) ([]db.Like, *string, error) {
	// subquery to exclude mutual likes
	subQuery := r.db.
		Table("likes").
		Select("1").
		Where("liker_id = l.liked_id AND liked_id = l.liker_id")

	query := r.db.WithContext(ctx).
		Table("likes l").
		Select("l.*").
		Where("l.liked_id = ? AND NOT EXISTS (?)", likedID, subQuery)

	return r.page(query, paginationToken, limit)
}

func (r *LikeRepository) page(query *gorm.DB, token *string, limit int) ([]db.Like, *string, error) {
	query, err := withCursor(query, token, "l.created_at", "l.id", true)
	if err != nil {
		return nil, nil, err
	}

	var likes []db.Like
	if err := query.Limit(limit + 1).Find(&likes).Error; err != nil {
		return nil, nil, err
	}
	likes, next := nextPage(likes, limit, func(l db.Like) (string, time.Time) { return l.ID, l.CreatedAt })
	return likes, next, nil
}

// CountLikers returns how many users liked the given user.
//
// Behavior:
//   - Counts likes where liked_id = X.
//   - Used in conjunction with Redis cache (DB is fallback).
//
// Example:
//
//	repo.CountLikers(ctx, "u42") // -> 123
func (r *LikeRepository) CountLikers(ctx context.Context, likedID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liked_id = ?", likedID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteInvolving removes every like sent or received by userID and returns
// the removed rows.
func (r *LikeRepository) DeleteInvolving(ctx context.Context, userID string) ([]db.Like, error) {
	var likes []db.Like
	if err := r.db.WithContext(ctx).
		Where("liker_id = ? OR liked_id = ?", userID, userID).
		Find(&likes).Error; err != nil {
		return nil, err
	}
	if len(likes) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.ID)
	}
	if err := r.db.WithContext(ctx).Delete(&db.Like{}, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return likes, nil
}
