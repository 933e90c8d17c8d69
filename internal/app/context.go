package app

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/heartline/internal/auth"
	"github.com/oggyb/heartline/internal/cache"
	"github.com/oggyb/heartline/internal/config"
	"github.com/oggyb/heartline/internal/metrics"
	"github.com/oggyb/heartline/internal/pipeline"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/storage"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	Hub      *realtime.Hub
	Relay    *realtime.Relay
	Pipeline *pipeline.Pipeline
	Issuer   *auth.Issuer
	Bucket   storage.Bucket
}

type options struct {
	metrics   *metrics.Metrics
	publisher func(hub *realtime.Hub) realtime.Publisher
	bucket    storage.Bucket
}

type Option func(*options)

// WithMetrics replaces the unregistered default collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPublisher routes committed changes through the publisher built by pub
// (a Redis or Kafka bus feeding the hub) instead of straight into the hub.
func WithPublisher(pub func(hub *realtime.Hub) realtime.Publisher) Option {
	return func(o *options) { o.publisher = pub }
}

func WithBucket(b storage.Bucket) Option {
	return func(o *options) { o.bucket = b }
}

// New creates a new AppContext. Without options changes are published to the
// in-process hub and metrics are not registered anywhere.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, opts ...Option) *AppContext {
	o := options{metrics: metrics.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Metrics:    o.metrics,
		Issuer:     auth.NewIssuer(cfg.Auth.JWTSecret, cfg.App.Name, cfg.Auth.TokenTTL),
		Bucket:     o.bucket,
	}

	a.Hub = realtime.NewHub(cfg.Events.SubscriberBuffer, logger, a.Metrics)
	var pub realtime.Publisher = a.Hub
	if o.publisher != nil {
		pub = o.publisher(a.Hub)
	}
	a.Relay = realtime.NewRelay(db, pub, cfg.Events.RelayBatch, logger, a.Metrics)
	a.Pipeline = pipeline.New(db, rdb, a.Relay, logger, a.Metrics)
	return a
}

// Publish flushes committed outbox events to subscribers.
func (a *AppContext) Publish(ctx context.Context) {
	a.Pipeline.Publish(ctx)
}
