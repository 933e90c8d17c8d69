package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/heartline/internal/db"
)

// MatchRepository provides data access methods for the Match model.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CanonicalPair orders two user ids so that the first is the smaller one.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// InsertIgnore creates the match for the unordered pair {a, b}.
//
// Behavior:
//   - Participants are stored in canonical order (user1_id < user2_id).
//   - If the pair already has a match → nothing is written and inserted is
//     false; the existing row is returned. Never an error, never a duplicate.
//   - Any other failure is returned as is.
//
// Example:
//
//	m, created, err := repo.InsertIgnore(ctx, "u2", "u1") // stored as (u1, u2)
func (r *MatchRepository) InsertIgnore(ctx context.Context, a, b string) (*db.Match, bool, error) {
	u1, u2 := CanonicalPair(a, b)
	m := &db.Match{User1ID: u1, User2ID: u2}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return m, true, nil
	}

	existing, err := r.GetByPair(ctx, u1, u2)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetByPair returns the match of {a, b} in either argument order.
func (r *MatchRepository) GetByPair(ctx context.Context, a, b string) (*db.Match, error) {
	u1, u2 := CanonicalPair(a, b)
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Take(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) Get(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Take(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Count returns the number of matches stored for the pair; used by tests and
// consistency checks.
func (r *MatchRepository) Count(ctx context.Context, a, b string) (int64, error) {
	u1, u2 := CanonicalPair(a, b)
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Count(&n).Error
	return n, err
}

// ListForUser returns the matches userID participates in, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID string, paginationToken *string, limit int) ([]db.Match, *string, error) {
	query := r.db.WithContext(ctx).
		Table("matches m").
		Select("m.*").
		Where("m.user1_id = ? OR m.user2_id = ?", userID, userID)

	query, err := withCursor(query, paginationToken, "m.created_at", "m.id", true)
	if err != nil {
		return nil, nil, err
	}

	var matches []db.Match
	if err := query.Limit(limit + 1).Find(&matches).Error; err != nil {
		return nil, nil, err
	}
	matches, next := nextPage(matches, limit, func(m db.Match) (string, time.Time) { return m.ID, m.CreatedAt })
	return matches, next, nil
}

// DeleteInvolving removes every match of userID and returns the removed rows.
func (r *MatchRepository) DeleteInvolving(ctx context.Context, userID string) ([]db.Match, error) {
	var matches []db.Match
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	if err := r.db.WithContext(ctx).Delete(&db.Match{}, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	return matches, nil
}
