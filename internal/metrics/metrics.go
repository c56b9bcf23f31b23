package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	ScrapePulls       prometheus.Counter
	MailsScraped      prometheus.Counter
	ImportedThreads   prometheus.Counter
	ImportedMessages  prometheus.Counter
	DuplicateThreads  prometheus.Counter
	DuplicatesRemoved prometheus.Counter
	ImportFailures    prometheus.Counter
	ImportDuration    prometheus.Histogram
}

// New creates and registers the bridge metrics.
func New() *Metrics {
	return &Metrics{
		ScrapePulls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_scrape_pulls_total",
			Help: "Total number of portal scrape runs",
		}),
		MailsScraped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_mails_scraped_total",
			Help: "Total number of raw mails scraped from the portal",
		}),
		ImportedThreads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_imported_threads_total",
			Help: "Total number of threads imported into the store",
		}),
		ImportedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_imported_messages_total",
			Help: "Total number of messages imported into the store",
		}),
		DuplicateThreads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_duplicate_threads_total",
			Help: "Total number of threads skipped because they already existed",
		}),
		DuplicatesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_duplicates_removed_total",
			Help: "Total number of messages removed by content deduplication",
		}),
		ImportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "webcalib_bridge_import_failures_total",
			Help: "Total number of per-item import failures",
		}),
		ImportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "webcalib_bridge_import_duration_seconds",
			Help:    "Time spent running an import request end to end",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
