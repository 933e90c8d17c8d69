package db

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-faker/faker/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LikeFunc records a like through the same path the API uses, so that the
// seeded likes produce matches and notifications.
type LikeFunc func(ctx context.Context, likerID, likedID string, super bool) error

var seedInterests = []string{"hiking", "cooking", "music", "travel", "books", "films", "yoga", "gaming", "art", "running"}
var seedLookingFor = []string{"relationship", "friendship", "casual", "unsure"}

// SeedTestData resets the database and populates it with demo accounts,
// profiles and likes.
//
// Behavior:
//  1. Clears every table owned by the service.
//  2. Creates 20 accounts (password "password") with matching profiles.
//  3. Issues ~200 likes through like; every 3rd pair is made mutual so
//     matches and their notifications exist.
func SeedTestData(ctx context.Context, db *gorm.DB, like LikeFunc, log *slog.Logger) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := Truncate(db); err != nil {
		return err
	}
	log.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ids := make([]string, 0, 20)
	for i := 1; i <= 20; i++ {
		acc := Account{
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
		}
		if err := db.WithContext(ctx).Create(&acc).Error; err != nil {
			return fmt.Errorf("failed to seed account: %w", err)
		}

		now := time.Now().UTC()
		profile := Profile{
			ID:         acc.ID,
			Email:      acc.Email,
			FirstName:  faker.FirstName(),
			Age:        18 + r.Intn(40),
			Bio:        faker.Sentence(),
			City:       "Lisbon",
			Interests:  datatypes.JSONSlice[string]{seedInterests[r.Intn(len(seedInterests))], seedInterests[r.Intn(len(seedInterests))]},
			Photos:     datatypes.JSONSlice[string]{PhotoKey(acc.ID, 1, now), PhotoKey(acc.ID, 2, now)},
			LookingFor: seedLookingFor[r.Intn(len(seedLookingFor))],
		}
		if err := db.WithContext(ctx).Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
		ids = append(ids, acc.ID)
	}
	log.Info("seeded profiles", "count", len(ids))

	counter := 0
	for _, actor := range ids {
		for j := 0; j < 10; j++ {
			target := ids[r.Intn(len(ids))]
			if target == actor {
				continue
			}
			super := r.Intn(100) < 10

			if counter%3 == 0 {
				if err := like(ctx, target, actor, false); err != nil {
					return fmt.Errorf("failed to seed reciprocal like: %w", err)
				}
			}
			if err := like(ctx, actor, target, super); err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}
			counter++
		}
	}
	log.Info("seeded likes", "count", counter)

	return nil
}

// Truncate deletes every row of every table, children first.
func Truncate(db *gorm.DB) error {
	for _, table := range []string{"outbox_events", "user_status", "notifications", "messages", "matches", "likes", "profiles", "accounts"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// PhotoKey builds the bucket key of the n-th photo uploaded by userID.
func PhotoKey(userID string, n int, at time.Time) string {
	return fmt.Sprintf("%s/photo_%d_%d.jpg", userID, n, at.UnixMilli())
}
