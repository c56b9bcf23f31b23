// webcalib-sync scrapes the portal once and imports the result into the
// local store, then prints the import report. Useful for cron-driven
// deployments and for verifying scraper credentials.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/db"
	"webcalib-bridge/internal/importer"
	"webcalib-bridge/internal/mailmap"
	"webcalib-bridge/internal/scraper"
	"webcalib-bridge/internal/store"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall sync timeout")
	checkOnly := flag.Bool("check", false, "validate configuration and exit")
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	result := cfg.Scraper.Validate()
	for _, w := range result.Warnings {
		logrus.Warn(w)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			logrus.Error(e)
		}
		os.Exit(1)
	}
	if *checkOnly {
		fmt.Println("configuration ok")
		return
	}

	dbConn, err := db.Open(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}

	storePath := ""
	if cfg.Database.Driver == "sqlite" {
		storePath = cfg.Database.Path
	}
	st, err := store.New(dbConn, storePath)
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}

	imp := importer.New(st, scraper.NewPortalFetcher(), mailmap.New(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := imp.Run(ctx, importer.Request{
		Mode:    importer.ModeScrape,
		Scraper: &cfg.Scraper,
	})
	if err != nil {
		logrus.Fatalf("Sync failed: %v", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))

	if len(report.Errors) > 0 {
		os.Exit(2)
	}
}
