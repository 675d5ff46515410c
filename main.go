package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flatnas/config"
	"flatnas/db"
	"flatnas/infrastructure/filestore"
	infraredis "flatnas/infrastructure/redis"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
	"flatnas/server"
	"flatnas/server/routes"
	"flatnas/server/websocket"
	"flatnas/services/accounts"
	"flatnas/services/dashboard"
	"flatnas/services/feeds"
	"flatnas/services/media"
	"flatnas/services/probe"
	"flatnas/services/visitors"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}

func run() error {
	// Load environment
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCfg := logger.DefaultConfig(cfg.Server.LogFile)
	logCfg.Level = logger.ParseLevel(cfg.Server.LogLevel)
	appLogger, err := logger.NewWithConfig(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer appLogger.Close()
	logger.SetDefault(appLogger)

	logger.Info("✓ Configuration loaded and validated")
	cfg.PrintSummary()
	if cfg.Auth.SecretGenerated {
		logger.Warn("SECRET_KEY not set; using a random key, sessions will not survive a restart")
	}

	// Storage
	if err := db.EnsureDirectories(cfg.Storage); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}
	files := filestore.New()

	system, err := db.OpenSystemStore(cfg.Storage.SystemConfigFile, files)
	if err != nil {
		return fmt.Errorf("failed to load system config: %w", err)
	}
	users := db.NewUserStore(cfg.Storage, files, system)

	action, err := users.Migrate()
	if err != nil {
		return fmt.Errorf("failed to migrate admin data: %w", err)
	}
	created, err := users.EnsureAdmin()
	if err != nil {
		return fmt.Errorf("failed to initialise admin data: %w", err)
	}
	logger.WithFields(map[string]any{
		"auth_mode":     string(system.AuthMode()),
		"migration":     string(action),
		"admin_created": created,
	}).Info("✓ Data store ready")

	// Optional Redis for the shared request limiter
	rdb, err := infraredis.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis client: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	metrics.RegisterCollectors(rdb, users.Stats)

	// Services
	hub := websocket.NewManager()
	accountSvc := accounts.NewService(users, system, cfg.Auth)
	counter := visitors.Open(cfg.Storage.VisitorsFile, files)

	srv, err := server.NewServer(routes.Deps{
		Config:    cfg,
		System:    system,
		Users:     users,
		Accounts:  accountSvc,
		Dashboard: dashboard.NewService(users, accountSvc, hub),
		Feeds:     feeds.NewService(cfg.Feeds),
		Media:     media.NewService(cfg.Storage, cfg.Upload, files),
		Visitors:  counter,
		Pinger:    probe.NewPinger(cfg.Feeds.DefaultPingTarget, cfg.Feeds.PingTimeout),
		Hub:       hub,
		Redis:     rdb,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("Shutting down gracefully...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("✓ Server shutdown complete")
	return nil
}
