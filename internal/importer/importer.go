// Package importer runs the end-to-end pipeline: collect records (supplied
// directly or scraped from the portal), flatten, deduplicate by content,
// rebuild threads, and upsert into the store. Batches are best-effort:
// per-item failures are recorded in the report and processing continues.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/dedup"
	"webcalib-bridge/internal/mailmap"
	"webcalib-bridge/internal/metrics"
	"webcalib-bridge/internal/model"
	"webcalib-bridge/internal/scraper"
	"webcalib-bridge/internal/store"
)

// Import modes accepted by Run. Sync is an alias of direct kept for
// compatibility with the CLI uploader.
const (
	ModeDirect = "direct"
	ModeScrape = "scrape"
	ModeSync   = "sync"
)

// Request selects the collection mode and carries its inputs.
type Request struct {
	Mode     string
	Threads  []model.Thread
	Messages []model.Message
	Scraper  *config.ScraperConfig
}

// Report is the outcome of one import request.
type Report struct {
	ImportedThreads  int       `json:"importedThreads"`
	ImportedMessages int       `json:"importedMessages"`
	DuplicateThreads int       `json:"duplicateThreads"`
	Errors           []string  `json:"errors"`
	ProcessedAt      time.Time `json:"processedAt"`
}

// Importer wires the pipeline stages together.
type Importer struct {
	store   *store.Store
	fetcher scraper.Fetcher
	mapper  *mailmap.Mapper
	metrics *metrics.Metrics
}

// New returns an importer. metrics may be nil (tests).
func New(st *store.Store, fetcher scraper.Fetcher, mapper *mailmap.Mapper, m *metrics.Metrics) *Importer {
	return &Importer{store: st, fetcher: fetcher, mapper: mapper, metrics: m}
}

// Run executes the pipeline for one request. An error return means the
// request could not start at all (bad mode, invalid scraper config,
// cancellation); anything that fails mid-batch lands in Report.Errors
// instead.
func (i *Importer) Run(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	report := Report{Errors: []string{}}

	threads, messages, err := i.collect(ctx, req, &report)
	if err != nil {
		return report, err
	}

	candidates := flatten(threads, messages)

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		for subject, group := range dedup.AnalyzeSubjects(candidates) {
			if group.UniqueContents > 1 {
				logrus.Debugf("Subject %q carries %d distinct bodies across %d mails", subject, group.UniqueContents, group.Count)
			}
		}
	}

	result := dedup.Deduplicate(candidates)
	if i.metrics != nil {
		i.metrics.DuplicatesRemoved.Add(float64(len(result.Duplicates)))
	}
	if len(result.Duplicates) > 0 {
		logrus.Debug(dedup.Report(len(candidates), result))
	}

	surviving := make(map[string]struct{}, len(result.Unique))
	for _, msg := range result.Unique {
		surviving[msg.ID] = struct{}{}
	}

	covered := make(map[string]struct{})
	for _, thread := range rebuildThreads(threads, surviving) {
		if i.store.ThreadExists(thread.ID) {
			logrus.Debugf("Thread %s already exists, skipping", thread.ID)
			report.DuplicateThreads++
			if i.metrics != nil {
				i.metrics.DuplicateThreads.Inc()
			}
			continue
		}

		if err := i.store.UpsertThread(thread); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("thread import error (%s): %v", thread.ID, err))
			if i.metrics != nil {
				i.metrics.ImportFailures.Inc()
			}
			continue
		}

		report.ImportedThreads++
		report.ImportedMessages += len(thread.Messages)
		for _, msg := range thread.Messages {
			covered[msg.ID] = struct{}{}
		}
	}

	for _, msg := range result.Unique {
		if _, ok := covered[msg.ID]; ok {
			continue
		}
		if i.store.MessageExists(msg.ID) {
			continue
		}

		if err := i.store.UpsertMessage(msg); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("message import error (%s): %v", msg.ID, err))
			if i.metrics != nil {
				i.metrics.ImportFailures.Inc()
			}
			continue
		}
		report.ImportedMessages++
	}

	report.ProcessedAt = time.Now()
	if i.metrics != nil {
		i.metrics.ImportedThreads.Add(float64(report.ImportedThreads))
		i.metrics.ImportedMessages.Add(float64(report.ImportedMessages))
		i.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}

	logrus.Infof("Import completed: %d threads, %d messages, %d duplicate threads, %d errors",
		report.ImportedThreads, report.ImportedMessages, report.DuplicateThreads, len(report.Errors))
	return report, nil
}

func (i *Importer) collect(ctx context.Context, req Request, report *Report) ([]model.Thread, []model.Message, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeDirect
	}

	switch mode {
	case ModeDirect, ModeSync:
		return req.Threads, req.Messages, nil

	case ModeScrape:
		if req.Scraper == nil {
			return nil, nil, fmt.Errorf("scrape mode requires a scraper config")
		}
		if result := req.Scraper.Validate(); !result.Valid {
			return nil, nil, fmt.Errorf("invalid scraper config: %s", strings.Join(result.Errors, ", "))
		}

		if i.metrics != nil {
			i.metrics.ScrapePulls.Inc()
		}
		mails, errs, err := i.fetcher.Fetch(ctx, *req.Scraper)
		report.Errors = append(report.Errors, errs...)
		if err != nil {
			return nil, nil, fmt.Errorf("scrape aborted: %w", err)
		}
		if i.metrics != nil {
			i.metrics.MailsScraped.Add(float64(len(mails)))
		}

		stats := i.mapper.Statistics(mails)
		logrus.WithFields(logrus.Fields{
			"totalMails":    stats.TotalMails,
			"uniqueSenders": stats.UniqueSenders,
			"attachments":   stats.AttachmentCount,
			"earliest":      stats.EarliestDate,
			"latest":        stats.LatestDate,
		}).Info("Scrape batch summary")

		threads, messages := i.mapper.MapThreads(mails)
		return threads, messages, nil

	default:
		return nil, nil, fmt.Errorf("unsupported import mode: %q", mode)
	}
}

// flatten unions thread members with top-level messages, keyed by message
// id so a message supplied both ways enters the dedup stage once.
func flatten(threads []model.Thread, messages []model.Message) []model.Message {
	seen := make(map[string]struct{})
	var out []model.Message

	add := func(msg model.Message) {
		if _, ok := seen[msg.ID]; ok {
			return
		}
		seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}

	for _, thread := range threads {
		for _, msg := range thread.Messages {
			add(msg)
		}
	}
	for _, msg := range messages {
		add(msg)
	}
	return out
}

// rebuildThreads filters each thread down to the messages that survived
// deduplication; threads left empty are dropped.
func rebuildThreads(threads []model.Thread, surviving map[string]struct{}) []model.Thread {
	out := make([]model.Thread, 0, len(threads))
	for _, thread := range threads {
		var kept []model.Message
		for _, msg := range thread.Messages {
			if _, ok := surviving[msg.ID]; ok {
				kept = append(kept, msg)
			}
		}
		if len(kept) == 0 {
			continue
		}
		thread.Messages = kept
		out = append(out, thread)
	}
	return out
}
