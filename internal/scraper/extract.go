package scraper

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"webcalib-bridge/internal/mailmap"
	"webcalib-bridge/internal/model"
)

// FieldExtractor tries an ordered list of strategies against a document and
// returns the first plausible non-empty value. Each field on the detail page
// gets its own extractor because the portal renders the same information in
// several layouts depending on the page generation.
type FieldExtractor struct {
	strategies []func(*goquery.Document) string
}

// Extract runs the strategies in order.
func (e FieldExtractor) Extract(doc *goquery.Document) string {
	for _, strategy := range e.strategies {
		if v := strings.TrimSpace(strategy(doc)); v != "" {
			return v
		}
	}
	return ""
}

// selectorChain builds one strategy per selector: take the first match,
// prefer its form value over its text, and reject values containing any of
// the given tokens (usually the field's own label bleeding through).
func selectorChain(selectors []string, reject ...string) []func(*goquery.Document) string {
	strategies := make([]func(*goquery.Document) string, 0, len(selectors))
	for _, selector := range selectors {
		sel := selector
		strategies = append(strategies, func(doc *goquery.Document) string {
			el := doc.Find(sel).First()
			value, ok := el.Attr("value")
			if !ok || value == "" {
				value = el.Text()
			}
			value = strings.TrimSpace(value)
			for _, token := range reject {
				if strings.Contains(value, token) {
					return ""
				}
			}
			return value
		})
	}
	return strategies
}

var subjectExtractor = FieldExtractor{strategies: append(
	selectorChain([]string{
		`input[name="subject"]`,
		`input[name="mailSubject"]`,
		`input[name="title"]`,
		`td:contains("件名") + td`,
		`th:contains("件名") + td`,
		`td:contains("Subject") + td`,
		`th:contains("Subject") + td`,
		`.subject`, `.mail-subject`, `#subject`,
	}, "件名", "Subject"),
	func(doc *goquery.Document) string {
		title := strings.TrimSpace(doc.Find("title").Text())
		if title == "メッセージ詳細" || title == "エラー" {
			return ""
		}
		return title
	},
)}

var fromExtractor = FieldExtractor{strategies: selectorChain([]string{
	`input[name="from"]`,
	`input[name="sender"]`,
	`input[name="fromEmail"]`,
	`td:contains("送信者") + td`,
	`th:contains("送信者") + td`,
	`td:contains("From") + td`,
	`th:contains("From") + td`,
	`.from`, `.sender`, `#from`,
}, "送信者", "From", "ログアウト")}

var toExtractor = FieldExtractor{strategies: selectorChain([]string{
	`input[name="to"]`,
	`input[name="recipient"]`,
	`input[name="toEmail"]`,
	`td:contains("宛先") + td`,
	`th:contains("宛先") + td`,
	`td:contains("To") + td`,
	`th:contains("To") + td`,
	`.to`, `.recipient`, `#to`,
}, "宛先", "To")}

var ccExtractor = FieldExtractor{strategies: selectorChain([]string{
	`input[name="cc"]`,
	`input[name="ccEmail"]`,
	`td:contains("CC") + td`,
	`th:contains("CC") + td`,
	`td:contains("Cc") + td`,
	`th:contains("Cc") + td`,
	`.cc`, `#cc`,
}, "CC", "Cc")}

var dateExtractor = FieldExtractor{strategies: selectorChain([]string{
	`input[name="date"]`,
	`input[name="sendDate"]`,
	`input[name="mailDate"]`,
	`td:contains("送信日") + td`,
	`th:contains("送信日") + td`,
	`td:contains("日付") + td`,
	`th:contains("日付") + td`,
	`td:contains("Date") + td`,
	`th:contains("Date") + td`,
	`.date`, `.send-date`, `#date`,
}, "日付", "Date")}

// Body extraction is the loosest chain: named containers first, then any
// textarea or pre, then the labeled table cell.
var bodyExtractor = FieldExtractor{strategies: append(
	selectorChain([]string{
		`textarea[name="body"]`,
		`textarea[name="content"]`,
		`textarea[name="message"]`,
		`textarea[name="mailBody"]`,
		`#dispArea`,
		`.mail-body`, `.message-body`, `#mailBody`,
		`td:contains("本文") + td`,
		`th:contains("本文") + td`,
		`td:contains("内容") + td`,
		`th:contains("内容") + td`,
	}, "本文", "内容", "メッセージ管理", "ログアウト"),
	func(doc *goquery.Document) string {
		var best string
		doc.Find("textarea, pre").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.TrimSpace(sel.Text())
			if len([]rune(text)) > 20 {
				best = text
				return false
			}
			return true
		})
		return best
	},
)}

// ParseMailDetail extracts a RawMail from one detail page. Extraction is
// best-effort: only a missing document is an error, every field may come
// back empty except id and messageId, which are synthesized when the portal
// does not provide them.
func ParseMailDetail(html, href, listSubject string) (model.RawMail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.RawMail{}, fmt.Errorf("failed to parse detail page: %w", err)
	}

	messageID := messageIDFromHref(href)

	subject := strings.TrimSpace(listSubject)
	if subject == "" {
		subject = subjectExtractor.Extract(doc)
	}

	from := fromExtractor.Extract(doc)
	if from == "" {
		from = "Web-CALIB System <system@webcalib.local>"
	}

	return model.RawMail{
		ID:          messageID,
		MessageID:   messageID,
		ThreadID:    threadIDFromSubject(subject),
		Subject:     subject,
		From:        from,
		To:          splitAddressList(toExtractor.Extract(doc)),
		CC:          splitAddressList(ccExtractor.Extract(doc)),
		Date:        dateExtractor.Extract(doc),
		Body:        bodyExtractor.Extract(doc),
		Attachments: extractAttachments(doc, href),
		IsRead:      true, // opening the detail page marks it read upstream
		Priority:    extractPriority(doc),
	}, nil
}

func messageIDFromHref(href string) string {
	if idx := strings.Index(href, "?"); idx >= 0 {
		if params, err := url.ParseQuery(href[idx+1:]); err == nil {
			for _, key := range []string{"messageId", "messageNo", "id"} {
				if v := params.Get(key); v != "" {
					return v
				}
			}
		}
	}
	return "webcalib-" + uuid.NewString()
}

// threadIDFromSubject derives a conversation id from the subject with reply
// and forward prefixes stripped, so "Re: X" lands in the thread of "X".
func threadIDFromSubject(subject string) string {
	clean := subject
	for {
		lower := strings.ToLower(clean)
		trimmed := clean
		for _, prefix := range []string{"re:", "fw:", "fwd:"} {
			if strings.HasPrefix(lower, prefix) {
				trimmed = strings.TrimSpace(clean[len(prefix):])
				break
			}
		}
		if trimmed == clean {
			break
		}
		clean = trimmed
	}
	if clean == "" {
		return ""
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(clean))
	if len(encoded) > 16 {
		encoded = encoded[:16]
	}
	return "thread-" + encoded
}

func splitAddressList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func extractAttachments(doc *goquery.Document, baseHref string) []model.Attachment {
	var attachments []model.Attachment
	seen := make(map[string]struct{})

	selectors := []string{
		`a[href*="attachment"]`,
		`a[href*="download"]`,
		`.attachment-link`,
		`[data-attachment-id]`,
	}

	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			name := strings.TrimSpace(sel.Text())
			if name == "" {
				name, _ = sel.Attr("data-filename")
			}
			if href == "" || name == "" {
				return
			}
			if _, dup := seen[href]; dup {
				return
			}
			seen[href] = struct{}{}

			size, _ := strconv.ParseInt(sel.AttrOr("data-size", "0"), 10, 64)
			attachments = append(attachments, model.Attachment{
				ID:          fmt.Sprintf("%s-attachment-%d", baseHref, len(attachments)),
				Name:        name,
				Size:        size,
				ContentType: mailmap.GuessContentType(name),
				DownloadURL: href,
			})
		})
	}

	return attachments
}

func extractPriority(doc *goquery.Document) string {
	for _, selector := range []string{`input[name="priority"]`, `.priority`, `[data-priority]`} {
		el := doc.Find(selector).First()
		value, ok := el.Attr("value")
		if !ok || value == "" {
			value = el.Text()
		}
		if value == "" {
			value = el.AttrOr("data-priority", "")
		}
		if value == "" {
			continue
		}

		normalized := strings.ToLower(value)
		switch {
		case strings.Contains(normalized, "high"),
			strings.Contains(normalized, "重要"),
			strings.Contains(normalized, "緊急"):
			return model.PriorityHigh
		case strings.Contains(normalized, "low"), strings.Contains(normalized, "低"):
			return model.PriorityLow
		}
	}
	return model.PriorityNormal
}
