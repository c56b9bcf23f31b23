package handler

import (
	"time"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/model"
)

// ImportRequest is the body of POST /api/v1/import. Mode defaults to
// "direct"; "sync" is an alias kept for the CLI uploader; "scrape" runs the
// full pipeline against the configured portal.
type ImportRequest struct {
	Mode          string                `json:"mode"`
	Threads       []model.Thread        `json:"threads"`
	Messages      []model.Message       `json:"messages"`
	ScraperConfig *config.ScraperConfig `json:"scraperConfig"`
}

// ImportResponse is the envelope returned by the import endpoint.
type ImportResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *ImportData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Errors  []string    `json:"errors,omitempty"`
}

// ImportData carries the per-request counts.
type ImportData struct {
	ImportedThreads  int       `json:"importedThreads"`
	ImportedMessages int       `json:"importedMessages"`
	DuplicateThreads int       `json:"duplicateThreads"`
	Errors           []string  `json:"errors"`
	ProcessedAt      time.Time `json:"processedAt"`
}

// MailListItem is one row of GET /api/v1/mails.
type MailListItem struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Date     string   `json:"date"`
	IsRead   bool     `json:"isRead"`
	ThreadID string   `json:"threadId"`
	Snippet  string   `json:"snippet"`
	Labels   []string `json:"labels"`
}

// MailListResponse is the envelope returned by the mail list endpoint.
type MailListResponse struct {
	Success bool          `json:"success"`
	Data    *MailListData `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// MailListData carries the page plus aggregate figures for the filter set.
type MailListData struct {
	Mails      []MailListItem `json:"mails"`
	TotalCount int            `json:"totalCount"`
	LastSyncAt time.Time      `json:"lastSyncAt"`
	Pagination Pagination     `json:"pagination"`
	Stats      MailListStats  `json:"stats"`
}

// Pagination describes the window applied to the filtered result.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// MailListStats aggregates over the filtered result, not just the page.
type MailListStats struct {
	UnreadCount int    `json:"unreadCount"`
	TotalSize   string `json:"totalSize"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Details   map[string]string `json:"details,omitempty"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
