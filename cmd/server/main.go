package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/yatube/backend/internal/cache"
	"github.com/anonto42/yatube/backend/internal/events"
	"github.com/anonto42/yatube/backend/internal/middleware"
	"github.com/anonto42/yatube/backend/internal/router"
	"github.com/anonto42/yatube/backend/pkg/config"
	"github.com/anonto42/yatube/backend/pkg/firebase"
	pkglog "github.com/anonto42/yatube/backend/pkg/log"
	"github.com/anonto42/yatube/backend/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize databases")
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	media, err := newMediaStorage(ctx, cfg, db)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Media.Driver).Msg("failed to initialize media storage")
	}

	pageStore, closeStore, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Cache.Driver).Msg("failed to initialize page cache")
	}
	defer closeStore()

	publisher := events.Publisher(events.Nop{})
	if cfg.Nats.Enabled {
		nc, err := events.Connect(cfg.Nats.URL)
		if err != nil {
			logger.Fatal().Err(err).Str("url", cfg.Nats.URL).Msg("failed to connect to nats")
		}
		defer nc.Drain()
		publisher = events.NewNatsPublisher(nc)
	}

	// Firebase login is optional
	var verifier middleware.TokenVerifier
	app, err := firebase.InitFirebase(ctx, cfg.Auth.FirebaseCredentialsPath)
	switch {
	case err == nil:
		verifier = app
	case errors.Is(err, firebase.ErrNoCredentials):
		logger.Info().Msg("firebase login disabled")
	default:
		logger.Fatal().Err(err).Msg("failed to initialize firebase")
	}

	e, err := router.New(router.Dependencies{
		Config:    cfg,
		DB:        db.SQL,
		Media:     media,
		Cache:     pageStore,
		Publisher: publisher,
		Firebase:  verifier,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up routes")
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Str("env", cfg.Server.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func newMediaStorage(ctx context.Context, cfg *config.Config, db *config.DB) (storage.Storage, error) {
	switch cfg.Media.Driver {
	case "", "local":
		return storage.NewLocalStorage(cfg.Media.BasePath)
	case "gridfs":
		if db.Mongo == nil {
			return nil, errors.New("gridfs media storage needs mongo.uri")
		}
		return storage.NewGridFSStorage(db.Mongo.Database(cfg.Mongo.Database), cfg.Media.GridFSBucket)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.Media.S3)
	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.Media.Driver)
	}
}

func newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	switch cfg.Driver {
	case "", "memory":
		store := cache.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	case "redis":
		store, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
