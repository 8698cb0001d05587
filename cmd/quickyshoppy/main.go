package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kroslabs/quickyshoppy/internal/activity"
	"github.com/kroslabs/quickyshoppy/internal/backup"
	"github.com/kroslabs/quickyshoppy/internal/claude"
	"github.com/kroslabs/quickyshoppy/internal/config"
	"github.com/kroslabs/quickyshoppy/internal/database"
	"github.com/kroslabs/quickyshoppy/internal/logging"
	"github.com/kroslabs/quickyshoppy/internal/server"
	"github.com/kroslabs/quickyshoppy/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	settings := store.NewSettingsStore(db)
	if cfg.SettingsPassphrase != "" {
		if err := settings.EnableSealing(cfg.SettingsPassphrase); err != nil {
			slog.Error("failed to enable api key sealing", "error", err)
			os.Exit(1)
		}
	}

	classifier := claude.NewClient(claude.Config{
		BaseURL:   cfg.ClaudeBaseURL,
		Model:     cfg.ClaudeModel,
		Timeout:   cfg.ClaudeTimeout,
		CacheSize: cfg.CategoryCacheSize,
		CacheTTL:  cfg.CategoryCacheTTL,
	})

	activityLog := activity.New(logger.With("component", "activity"))

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		},
		Prefix:     cfg.Backup.Prefix,
		Passphrase: cfg.Backup.Passphrase,
		Interval:   cfg.Backup.Interval,
		Retention:  cfg.Backup.Retention,
	}

	srv := server.New(db, classifier, settings, activityLog, backupCfg, server.Config{
		AnalyzeRateLimit:  cfg.AnalyzeRateLimit,
		AnalyzeRateWindow: cfg.AnalyzeRateWindow,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Recipe analysis waits on the classification service.
		WriteTimeout: cfg.ClaudeTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("quickyshoppy starting", "addr", httpServer.Addr, "model", cfg.ClaudeModel)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	cancel()
	srv.Close()
	activityLog.Close()
}
