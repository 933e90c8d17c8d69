package main

import (
	"context"
	"os"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/cache"
	"github.com/oggyb/heartline/internal/config"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()
	ctx := context.Background()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()

	// Likes go through the pipeline so matches and notifications are
	// seeded too.
	appCtx := app.New(cfg, database, redisCache, log)
	like := func(ctx context.Context, likerID, likedID string, super bool) error {
		_, err := appCtx.Pipeline.Like(ctx, likerID, likedID, super)
		return err
	}

	if err := db.SeedTestData(ctx, database, like, log); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}

	log.Info("Seeding completed.")
}
