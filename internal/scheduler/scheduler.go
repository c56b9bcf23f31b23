// Package scheduler runs the scrape-and-import cycle on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/importer"
)

// Scheduler manages the periodic portal sync.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SchedulerConfig
	scraper   *config.ScraperConfig
	importer  *importer.Importer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	lastRun   time.Time
	mu        sync.RWMutex
}

// New creates a scheduler that imports from the portal every
// cfg.IntervalMinutes minutes once started.
func New(cfg *config.SchedulerConfig, scraperCfg *config.ScraperConfig, imp *importer.Importer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		config:   cfg,
		scraper:  scraperCfg,
		importer: imp,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// A restart after Stop needs a fresh context
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.cron = cron.New(cron.WithSeconds())
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.runSync)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for an in-flight sync to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to interrupt a running scrape
	s.cancel()

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runSync is the periodic job body.
func (s *Scheduler) runSync() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		logrus.Info("Scheduler not running, skipping sync cycle")
		return
	}
	start := time.Now()
	s.lastRun = start
	s.mu.Unlock()

	logrus.Info("Starting scheduled portal sync")

	report, err := s.importer.Run(s.ctx, importer.Request{
		Mode:    importer.ModeScrape,
		Scraper: s.scraper,
	})
	if err != nil {
		logrus.Errorf("Scheduled sync failed: %v", err)
		return
	}

	if len(report.Errors) > 0 {
		logrus.Warnf("Scheduled sync completed with %d errors", len(report.Errors))
	}
	logrus.WithFields(logrus.Fields{
		"importedThreads":  report.ImportedThreads,
		"importedMessages": report.ImportedMessages,
		"duplicateThreads": report.DuplicateThreads,
		"duration":         time.Since(start).String(),
	}).Info("Scheduled portal sync completed")
}

// RunOnce runs the sync once (for manual triggering).
func (s *Scheduler) RunOnce() error {
	logrus.Info("Running portal sync once")
	s.runSync()
	return nil
}

// GetNextRun returns the time of the next scheduled run.
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the start time of the most recent sync. The value is
// tracked on the scheduler, so it survives a stop/start cycle.
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Wait waits for in-flight sync jobs to finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
