package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cipherroom/cipherroom/internal/api"
	"github.com/cipherroom/cipherroom/internal/api/middleware"
	"github.com/cipherroom/cipherroom/internal/chat"
	"github.com/cipherroom/cipherroom/internal/config"
	"github.com/cipherroom/cipherroom/internal/handlers"
	"github.com/cipherroom/cipherroom/internal/hub"
	"github.com/cipherroom/cipherroom/internal/keyring"
	"github.com/cipherroom/cipherroom/internal/store"
	"github.com/cipherroom/cipherroom/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	if cfg.JWTSecret == "" {
		// Development only; config.Load panics in production.
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using insecure development secret")
	}

	ctx := context.Background()

	// Room directory: Postgres when configured, SQLite otherwise
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pg
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sq, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sq
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite room directory")
	}
	defer dataStore.Close()

	// Message log: Redis when configured, in-memory otherwise
	var msgLog store.MessageLog
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		rl, err := store.NewRedisLog(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		msgLog = rl
		redisClient = rl.Client()
		logger.Info().Msg("connected to Redis")
	} else {
		msgLog = store.NewMemoryLog()
		logger.Warn().Msg("REDIS_URL not set, message history is in-memory only")
	}
	defer msgLog.Close()

	// Real-time fan-out and typing presence
	h := hub.New(logger)
	tracker := hub.NewTracker(h, cfg.TypingTTL, logger)

	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go tracker.Run(sweeperCtx)

	// Core engine
	svc := chat.NewService(dataStore, msgLog, keyring.New(dataStore), h, logger)

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)
	handler := handlers.NewHandler(svc, h, dataStore, msgLog)
	wsHandler := ws.NewHandler(h, tracker, dataStore, logger)

	router := api.NewRouter(api.Deps{
		Logger:      logger,
		Handler:     handler,
		WSHandler:   wsHandler,
		Auth:        auth,
		RedisClient: redisClient,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting cipherroom server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
