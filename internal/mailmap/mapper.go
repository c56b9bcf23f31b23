package mailmap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/model"
)

const snippetLimit = 150

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Date layouts the portal has been seen to emit. Tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"2006年01月02日 15:04",
	"2006年1月2日 15:04",
	"2006年01月02日",
}

// Mapper converts scraped RawMail records into the Gmail-like thread/message
// model. It is stateless apart from the clock, which is injectable so that
// missing-date fallbacks are deterministic in tests.
type Mapper struct {
	now func() time.Time
}

// New returns a Mapper using the wall clock.
func New() *Mapper {
	return &Mapper{now: time.Now}
}

// NewWithClock returns a Mapper whose "current time" fallback is fixed.
func NewWithClock(now func() time.Time) *Mapper {
	return &Mapper{now: now}
}

// MapThreads converts a batch of raw mails into threads and messages.
// Mails sharing a thread id (falling back to the mail id) form one thread,
// sorted ascending by parsed date with input order as the tie-break. The
// returned messages follow the input order of the batch.
func (m *Mapper) MapThreads(mails []model.RawMail) ([]model.Thread, []model.Message) {
	groups := make(map[string][]model.RawMail)
	var order []string

	for _, mail := range mails {
		tid := mail.ThreadID
		if tid == "" {
			tid = mail.ID
		}
		if _, ok := groups[tid]; !ok {
			order = append(order, tid)
		}
		groups[tid] = append(groups[tid], mail)
	}

	threads := make([]model.Thread, 0, len(order))
	for _, tid := range order {
		group := groups[tid]
		sort.SliceStable(group, func(i, j int) bool {
			return m.parseDate(group[i].Date).Before(m.parseDate(group[j].Date))
		})
		threads = append(threads, m.mapThread(tid, group))
	}

	messages := make([]model.Message, 0, len(mails))
	for _, mail := range mails {
		messages = append(messages, m.MapMessage(mail))
	}

	logrus.Debugf("Mapped %d mails into %d threads", len(mails), len(threads))
	return threads, messages
}

// MapMessage converts a single raw mail into its Gmail-like form.
func (m *Mapper) MapMessage(mail model.RawMail) model.Message {
	tid := mail.ThreadID
	if tid == "" {
		tid = mail.ID
	}

	headers := buildHeaders(mail)
	body := buildBody(mail.Body)

	return model.Message{
		ID:           mail.ID,
		ThreadID:     tid,
		LabelIDs:     buildLabels(mail),
		Snippet:      Snippet(mail.Body),
		HistoryID:    historyID(mail),
		InternalDate: strconv.FormatInt(m.parseDate(mail.Date).UnixMilli(), 10),
		Payload:      buildPayload(mail, headers, body),
		SizeEstimate: estimateSize(mail),
	}
}

func (m *Mapper) mapThread(id string, mails []model.RawMail) model.Thread {
	messages := make([]model.Message, 0, len(mails))
	for _, mail := range mails {
		messages = append(messages, m.MapMessage(mail))
	}

	latest := mails[len(mails)-1]
	return model.Thread{
		ID:        id,
		Subject:   latest.Subject,
		Snippet:   Snippet(latest.Body),
		HistoryID: historyID(latest),
		Messages:  messages,
		Labels:    []string{model.LabelInternalMail, model.LabelInbox},
	}
}

// parseDate parses a free-form portal date string. Unparseable dates fall
// back to now, which sorts them after any genuinely dated mail.
func (m *Mapper) parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return m.now()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return m.now()
}

// Snippet produces a short plain-text preview: HTML tags stripped,
// whitespace runs collapsed, trimmed, truncated to 150 characters with an
// ellipsis marker when the cleaned text was longer.
func Snippet(body string) string {
	plain := htmlTagRe.ReplaceAllString(body, "")
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(plain, " "))

	runes := []rune(cleaned)
	if len(runes) <= snippetLimit {
		return cleaned
	}
	return string(runes[:snippetLimit]) + "..."
}

func buildHeaders(mail model.RawMail) []model.Header {
	headers := []model.Header{
		{Name: "Message-ID", Value: mail.MessageID},
		{Name: "Date", Value: mail.Date},
		{Name: "From", Value: mail.From},
		{Name: "To", Value: strings.Join(mail.To, ", ")},
		{Name: "Subject", Value: mail.Subject},
	}

	if len(mail.CC) > 0 {
		headers = append(headers, model.Header{Name: "Cc", Value: strings.Join(mail.CC, ", ")})
	}
	if len(mail.BCC) > 0 {
		headers = append(headers, model.Header{Name: "Bcc", Value: strings.Join(mail.BCC, ", ")})
	}

	priority := mail.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	headers = append(headers,
		model.Header{Name: "X-Source", Value: "Web-CALIB"},
		model.Header{Name: "X-Priority", Value: priority},
	)

	if mail.ThreadID != "" {
		headers = append(headers, model.Header{Name: "X-Thread-ID", Value: mail.ThreadID})
	}

	return headers
}

func buildBody(text string) model.Body {
	return model.Body{
		Size: int64(len(text)),
		Data: base64.StdEncoding.EncodeToString([]byte(text)),
	}
}

func buildPayload(mail model.RawMail, headers []model.Header, body model.Body) model.Payload {
	payload := model.Payload{
		PartID:   "0",
		MimeType: "text/plain",
		Headers:  headers,
		Body:     body,
	}

	if len(mail.Attachments) == 0 {
		return payload
	}

	payload.MimeType = "multipart/mixed"
	payload.Parts = make([]model.Payload, 0, len(mail.Attachments)+1)
	payload.Parts = append(payload.Parts, model.Payload{
		PartID:   "0.0",
		MimeType: "text/plain",
		Headers: []model.Header{
			{Name: "Content-Type", Value: "text/plain; charset=UTF-8"},
		},
		Body: body,
	})

	for i, att := range mail.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = GuessContentType(att.Name)
		}
		part := model.Payload{
			PartID:   fmt.Sprintf("0.%d", i+1),
			MimeType: contentType,
			Filename: att.Name,
			Headers: []model.Header{
				{Name: "Content-Type", Value: contentType},
				{Name: "Content-Disposition", Value: fmt.Sprintf("attachment; filename=%q", att.Name)},
			},
			Body: model.Body{
				AttachmentID: att.ID,
				Size:         att.Size,
			},
		}
		if len(att.Content) > 0 {
			part.Body.Data = base64.StdEncoding.EncodeToString(att.Content)
		}
		payload.Parts = append(payload.Parts, part)
	}

	return payload
}

func buildLabels(mail model.RawMail) []string {
	labels := []string{model.LabelInternalMail}

	if !mail.IsRead {
		labels = append(labels, model.LabelUnread)
	}
	if mail.Priority == model.PriorityHigh {
		labels = append(labels, model.LabelImportant)
	}

	subject := strings.ToLower(mail.Subject)
	if strings.Contains(subject, "urgent") || strings.Contains(subject, "緊急") {
		labels = append(labels, model.LabelUrgent)
	}

	from := strings.ToLower(mail.From)
	if strings.Contains(from, "noreply") || strings.Contains(from, "no-reply") {
		labels = append(labels, model.LabelNotification)
	}

	return labels
}

// historyID is a short identity token derived from id and date. It exists for
// Gmail shape compatibility only and carries no uniqueness guarantee.
func historyID(mail model.RawMail) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(mail.ID + "-" + mail.Date))
	if len(encoded) > 16 {
		encoded = encoded[:16]
	}
	return encoded
}

func estimateSize(mail model.RawMail) int64 {
	serialized, err := json.Marshal(mail)
	if err != nil {
		return 0
	}
	size := int64(len(serialized))
	for _, att := range mail.Attachments {
		size += att.Size
	}
	return size
}
