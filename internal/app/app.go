// Package app wires configuration, storage, the import pipeline, and the
// HTTP server together and runs the service until interrupted.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/db"
	"webcalib-bridge/internal/handler"
	"webcalib-bridge/internal/importer"
	"webcalib-bridge/internal/mailmap"
	"webcalib-bridge/internal/metrics"
	"webcalib-bridge/internal/router"
	"webcalib-bridge/internal/scheduler"
	"webcalib-bridge/internal/scraper"
	"webcalib-bridge/internal/store"
)

// Run initializes and starts the bridge service.
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	logrus.Info("Starting Web-CALIB bridge service")

	dbConn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	storePath := ""
	if cfg.Database.Driver == "sqlite" {
		storePath = cfg.Database.Path
	}
	st, err := store.New(dbConn, storePath)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	m := metrics.New()
	imp := importer.New(st, scraper.NewPortalFetcher(), mailmap.New(), m)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(&cfg.Scheduler, &cfg.Scraper, imp)
	}

	h := handler.New(dbConn, st, imp, sched)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if sched != nil {
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			logrus.Errorf("Failed to stop scheduler: %v", err)
		}
		sched.Wait()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
