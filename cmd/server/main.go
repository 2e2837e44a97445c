package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ivanreeve/poop-tracker/internal"
	api "github.com/ivanreeve/poop-tracker/internal/api"
	"github.com/ivanreeve/poop-tracker/internal/auth"
	"github.com/ivanreeve/poop-tracker/internal/config"
	"github.com/ivanreeve/poop-tracker/internal/observability"
	"github.com/ivanreeve/poop-tracker/internal/session"
	"github.com/ivanreeve/poop-tracker/internal/storage"
)

type server struct {
	logger   internal.Logger
	sessions *session.Manager
}

func (s *server) Logger() internal.Logger     { return s.logger }
func (s *server) Sessions() *session.Manager { return s.sessions }
func (s *server) Now() time.Time             { return time.Now() }

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StorageBackend == "file" {
		for _, f := range []string{cfg.LogsFile, cfg.FriendshipsFile, cfg.ProfilesFile} {
			if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
				logger.Fatalf("failed to create data dir: %v", err)
			}
		}
	}
	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close storage: %v", err)
		}
	}()

	if cfg.RedisAddr != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warnf("redis unavailable, profile cache disabled: %v", err)
		} else {
			defer rdb.Close()
			store = storage.WithProfileCache(store, rdb, storage.DefaultProfileTTL, logger)
			logger.Infof("profile cache enabled at %s", cfg.RedisAddr)
		}
	}

	var provider auth.Provider
	switch cfg.AuthMode {
	case "jwt":
		provider = auth.NewJWTAuthProvider(cfg.JWTSecret, logger)
	case "remote":
		provider = auth.NewRemoteAuthProvider(cfg.AuthURL, cfg.AuthAPIKey, logger)
	default:
		provider = auth.NewLocalAuthProvider(cfg.AuthToken, logger)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Errorf("failed to flush traces: %v", err)
		}
	}()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	app := &server{
		logger: logger,
		sessions: session.NewManager(
			session.Repositories{Logs: store, Friendships: store, Profiles: store},
			session.Options{
				Timeout:    cfg.RequestTimeout,
				UndoWindow: cfg.UndoWindow,
				IdleTTL:    cfg.SessionIdleTTL,
				Logger:     logger,
				Observer:   metrics,
				OnSweep:    metrics.SetActiveSessions,
			},
		),
	}
	go app.sessions.Run(ctx, time.Minute)

	r := api.NewRouter(app, provider, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        metrics,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server running on %s (storage=%s, auth=%s)", cfg.HTTPAddr, cfg.StorageBackend, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
