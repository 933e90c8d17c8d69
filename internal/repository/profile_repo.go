package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/db"
)

// ProfileRepository provides data access methods for the Profile model.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

// Create inserts a new profile. A second profile for the same id fails with
// gorm.ErrDuplicatedKey.
func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).Take(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Save writes every column of p except the immutable id and created_at.
func (r *ProfileRepository) Save(ctx context.Context, p *db.Profile) error {
	res := r.db.WithContext(ctx).
		Model(p).
		Select("*").
		Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DisplayName returns the first name of the profile, or ok=false when the
// profile does not exist or has no name.
func (r *ProfileRepository) DisplayName(ctx context.Context, id string) (name string, ok bool, err error) {
	var p db.Profile
	err = r.db.WithContext(ctx).Select("id", "first_name").Take(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.FirstName, p.FirstName != "", nil
}

// GetMany loads the profiles with the given ids, keyed by id. Missing ids
// are simply absent from the result.
func (r *ProfileRepository) GetMany(ctx context.Context, ids []string) (map[string]db.Profile, error) {
	out := make(map[string]db.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []db.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// CandidateFilter narrows the discovery feed. Zero values do not filter.
type CandidateFilter struct {
	MinAge     int
	MaxAge     int
	City       string
	LookingFor string
}

// ListCandidates returns profiles the viewer has not liked yet.
//
// Behavior:
//   - Excludes the viewer and every profile the viewer already liked.
//   - Applies the optional age/city/looking_for equality filters.
//   - Ordered by created_at DESC, id DESC (newest profiles first); no ranking.
//   - Supports cursor-based pagination.
//
// Example:
//
//	repo.ListCandidates(ctx, "u1", CandidateFilter{City: "Lisbon"}, nil, 20)
func (r *ProfileRepository) ListCandidates(
	ctx context.Context,
	viewerID string,
	filter CandidateFilter,
	paginationToken *string,
	limit int,
) ([]db.Profile, *string, error) {
	liked := r.db.
		Table("likes").
		Select("1").
		Where("likes.liker_id = ? AND likes.liked_id = p.id", viewerID)

	query := r.db.WithContext(ctx).
		Table("profiles p").
		Select("p.*").
		Where("p.id <> ? AND NOT EXISTS (?)", viewerID, liked)

	if filter.MinAge > 0 {
		query = query.Where("p.age >= ?", filter.MinAge)
	}
	if filter.MaxAge > 0 {
		query = query.Where("p.age <= ?", filter.MaxAge)
	}
	if filter.City != "" {
		query = query.Where("p.city = ?", filter.City)
	}
	if filter.LookingFor != "" {
		query = query.Where("p.looking_for = ?", filter.LookingFor)
	}

	query, err := withCursor(query, paginationToken, "p.created_at", "p.id", true)
	if err != nil {
		return nil, nil, err
	}

	var profiles []db.Profile
	if err := query.Limit(limit + 1).Find(&profiles).Error; err != nil {
		return nil, nil, err
	}
	profiles, next := nextPage(profiles, limit, func(p db.Profile) (string, time.Time) { return p.ID, p.CreatedAt })
	return profiles, next, nil
}

func (r *ProfileRepository) Delete(ctx context.Context, id string) (*db.Profile, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&db.Profile{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return p, nil
}
