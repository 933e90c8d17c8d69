package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/db"
)

// AccountRepository stores login identities.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(database *gorm.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new account. A taken email fails with
// gorm.ErrDuplicatedKey.
func (r *AccountRepository) Create(ctx context.Context, a *db.Account) error {
	a.Email = NormalizeEmail(a.Email)
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*db.Account, error) {
	var a db.Account
	if err := r.db.WithContext(ctx).Take(&a, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*db.Account, error) {
	var a db.Account
	if err := r.db.WithContext(ctx).Take(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Account{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&db.Account{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
