package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/echorelay/internal/api"
	"github.com/mcoot/echorelay/internal/config"
	"github.com/mcoot/echorelay/internal/factory"
	"github.com/mcoot/echorelay/internal/services/profilesync"
	"github.com/mcoot/echorelay/internal/services/sessions"
	redisstorage "github.com/mcoot/echorelay/internal/storage/redis"
)

func main() {
	// Load configuration from environment
	relayCfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	level, _ := config.ParseLevel(relayCfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Build factory config
	cfg := factory.Config{
		Logger:      logger,
		StorageType: relayCfg.StorageType,
		SQLitePath:  relayCfg.SQLitePath,
		SyncConfig: profilesync.Config{
			PushTimeout: relayCfg.PushTimeout,
			Concurrency: relayCfg.PushConcurrency,
		},
		SessionConfig: sessions.Config{
			HandshakeTimeout: relayCfg.HandshakeTimeout,
		},
	}
	if cfg.StorageType == config.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = relayCfg.RedisURL
		cfg.RedisConfig = &redisCfg
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	if relayCfg.APIKeyHash == "" {
		logger.Warn("RELAY_API_KEY_HASH not set, admin API is unauthenticated")
	}

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:            logger,
		Metrics:           app.Metrics,
		Accounts:          app.Accounts,
		Registry:          app.Registry,
		Sessions:          app.Sessions,
		Peers:             app.Peers,
		PeerHandler:       app.PeerHandler,
		GameServerHandler: app.GameServerHandler,
		APIKeyHash:        relayCfg.APIKeyHash,
		RateLimit:         relayCfg.RateLimit,
		RateBurst:         relayCfg.RateBurst,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = relayCfg.Host
	serverConfig.Port = relayCfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
