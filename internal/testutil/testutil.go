// Package testutil builds isolated dependencies for tests: an in-memory
// SQLite database per test, a miniredis instance and a wired AppContext.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/cache"
	"github.com/oggyb/heartline/internal/config"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/logger"
	"github.com/oggyb/heartline/internal/session"
)

// NewDB opens an in-memory SQLite database private to t and migrates it.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", name)
	// one connection: the shared in-memory db and its transactions stay serial
	return openDB(t, dsn, 1)
}

// NewFileDB opens a SQLite file in t.TempDir with a connection pool, for
// tests that need transactions to really overlap. Every transaction takes
// the write lock at BEGIN and waiters retry until the busy timeout.
func NewFileDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "heartline.db")
	dsn := path + "?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate&_foreign_keys=0"
	return openDB(t, dsn, 8)
}

func openDB(t *testing.T, dsn string, maxConns int) *gorm.DB {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(database))
	return database
}

// NewRedis starts a miniredis and returns a cache bound to it.
func NewRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	c := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

// Config returns a configuration suitable for tests.
func Config() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "heartline"
	cfg.App.ENV = "test"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	cfg.Events.RelayBatch = 100
	cfg.Events.SubscriberBuffer = 64
	cfg.Storage.MaxUploadBytes = 1 << 20
	cfg.HTTP.UploadPerMin = 1000
	cfg.HTTP.AllowedOrigins = []string{"*"}
	return cfg
}

// NewAppContext wires an AppContext over a private database and miniredis.
func NewAppContext(t *testing.T, opts ...app.Option) *app.AppContext {
	t.Helper()
	return NewAppContextOn(t, NewDB(t), opts...)
}

// NewAppContextOn wires an AppContext over database and a fresh miniredis.
func NewAppContextOn(t *testing.T, database *gorm.DB, opts ...app.Option) *app.AppContext {
	t.Helper()
	rc, _ := NewRedis(t)
	return app.New(Config(), database, rc, logger.Discard(), opts...)
}

// SeedProfile inserts an account and a complete profile with the given id.
func SeedProfile(t *testing.T, gdb *gorm.DB, id, firstName string) db.Profile {
	t.Helper()
	require.NoError(t, gdb.Create(&db.Account{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "x",
	}).Error)

	p := db.Profile{
		ID:         id,
		Email:      id + "@example.com",
		FirstName:  firstName,
		Age:        25,
		City:       "Lisbon",
		Interests:  datatypes.JSONSlice[string]{"music"},
		Photos:     datatypes.JSONSlice[string]{id + "/photo_1_1.jpg", id + "/photo_2_2.jpg"},
		LookingFor: "relationship",
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}

// SeedProfiles inserts profiles "u1".."un" named after names, in order.
func SeedProfiles(t *testing.T, gdb *gorm.DB, names ...string) []db.Profile {
	t.Helper()
	out := make([]db.Profile, 0, len(names))
	for i, name := range names {
		out = append(out, SeedProfile(t, gdb, fmt.Sprintf("u%d", i+1), name))
	}
	return out
}

// As returns a context authenticated as userID.
func As(userID string) context.Context {
	return session.WithSession(context.Background(), session.Session{UserID: userID, Email: userID + "@example.com"})
}
