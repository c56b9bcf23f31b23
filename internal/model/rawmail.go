package model

// Priority levels reported by the Web-CALIB detail page.
const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// RawMail is the unprocessed output of the scraping layer: one record per
// scraped detail page. ID and MessageID are always non-empty once a record
// leaves the scraper; every other field is best-effort and may be empty.
type RawMail struct {
	ID          string       `json:"id"`
	MessageID   string       `json:"messageId"`
	ThreadID    string       `json:"threadId,omitempty"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	To          []string     `json:"to"`
	CC          []string     `json:"cc,omitempty"`
	BCC         []string     `json:"bcc,omitempty"`
	Date        string       `json:"date"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	IsRead      bool         `json:"isRead"`
	Priority    string       `json:"priority,omitempty"`
}

// Attachment describes a file attached to a scraped mail. Content is only
// populated when the scraper downloaded the file; otherwise DownloadURL
// points back at the portal.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Content     []byte `json:"content,omitempty"`
}
