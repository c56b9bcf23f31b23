package model

// Gmail-like shapes consumed by the downstream application. The field names
// mirror the Gmail API so the importer on the other side can treat Web-CALIB
// mail like any other mailbox.

// Labels attached by the normalizer.
const (
	LabelInternalMail = "INTERNAL_MAIL"
	LabelInbox        = "INBOX"
	LabelUnread       = "UNREAD"
	LabelImportant    = "IMPORTANT"
	LabelUrgent       = "URGENT"
	LabelNotification = "NOTIFICATION"
)

// Thread groups messages that share a conversation identifier, ordered
// chronologically ascending. Subject and snippet come from the latest member.
type Thread struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Snippet   string    `json:"snippet"`
	HistoryID string    `json:"historyId"`
	Messages  []Message `json:"messages"`
	Labels    []string  `json:"labels"`
}

// Message is one normalized mail record.
type Message struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"threadId"`
	LabelIDs     []string `json:"labelIds"`
	Snippet      string   `json:"snippet"`
	HistoryID    string   `json:"historyId"`
	InternalDate string   `json:"internalDate"`
	Payload      Payload  `json:"payload"`
	SizeEstimate int64    `json:"sizeEstimate"`
}

// Payload is a MIME-like part tree: a single text/plain part for plain
// mails, or multipart/mixed with the text part at index 0 and one part per
// attachment. Parts is non-nil exactly when the source mail had attachments.
type Payload struct {
	PartID   string    `json:"partId"`
	MimeType string    `json:"mimeType"`
	Filename string    `json:"filename"`
	Headers  []Header  `json:"headers"`
	Body     Body      `json:"body"`
	Parts    []Payload `json:"parts,omitempty"`
}

// Header is a single name/value header pair.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body carries part content. Data is base64-encoded.
type Body struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Size         int64  `json:"size"`
	Data         string `json:"data,omitempty"`
}

// Header returns the value of the first header with the given name, or "".
func (m Message) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// HasLabel reports whether the message carries the given label.
func (m Message) HasLabel(label string) bool {
	for _, l := range m.LabelIDs {
		if l == label {
			return true
		}
	}
	return false
}
