package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/cache"
	"github.com/oggyb/heartline/internal/config"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/logger"
	"github.com/oggyb/heartline/internal/metrics"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/server"
	"github.com/oggyb/heartline/internal/storage"
)

func main() {
	if err := run(); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		return err
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		return err
	}

	bucket, err := storage.NewFSBucket(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return err
	}

	opts := []app.Option{
		app.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		app.WithBucket(bucket),
	}

	// Change bus: every instance publishes its outbox to the bus and feeds its
	// own hub from it, so subscribers see changes committed anywhere.
	var startBus func(context.Context) error
	switch cfg.Events.Backend {
	case "redis":
		opts = append(opts, app.WithPublisher(func(hub *realtime.Hub) realtime.Publisher {
			bus := realtime.NewRedisBus(redisCache.Client, cfg.Events.RedisChannel, hub, log)
			startBus = bus.Start
			return bus
		}))
	case "kafka":
		opts = append(opts, app.WithPublisher(func(hub *realtime.Hub) realtime.Publisher {
			bus := realtime.NewKafkaBus(realtime.KafkaConfig{
				Brokers: cfg.Events.KafkaBrokers,
				Topic:   cfg.Events.KafkaTopic,
				GroupID: cfg.Events.KafkaGroupID,
			}, hub, log)
			startBus = bus.Start
			go func() {
				<-ctx.Done()
				_ = bus.Close()
			}()
			return bus
		}))
	case "local", "":
	default:
		log.Warn("unknown EVENTS_BACKEND, using the in-process hub", "backend", cfg.Events.Backend)
	}

	appCtx := app.New(cfg, database, redisCache, log, opts...)

	if startBus != nil {
		if err := startBus(ctx); err != nil {
			return err
		}
		log.Info("change bus started", "backend", cfg.Events.Backend)
	}

	if cfg.App.ENV == "development" && os.Getenv("SEED") != "" {
		like := func(ctx context.Context, likerID, likedID string, super bool) error {
			_, err := appCtx.Pipeline.Like(ctx, likerID, likedID, super)
			return err
		}
		if err := db.SeedTestData(ctx, database, like, log); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	grpcServer := server.NewGRPCServer(appCtx, server.Registrars(appCtx)...)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           server.NewHTTPHandler(appCtx, server.NewAuthenticator(appCtx), prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appCtx.Relay.Run(gctx, cfg.Events.RelayInterval, cfg.Events.Retention)
		return nil
	})

	g.Go(func() error {
		addr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
		log.Info("starting gRPC server", "addr", addr)
		return server.StartGRPCServer(grpcServer, addr)
	})

	g.Go(func() error {
		log.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// end open streams first so GracefulStop does not wait on them
		appCtx.Hub.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
