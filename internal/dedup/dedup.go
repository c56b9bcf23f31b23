// Package dedup removes exact-content duplicates from normalized messages.
//
// Identity is the pair (subject, content), not the message id: a mail
// re-scraped under a fresh portal id but carrying the same subject and body
// is the same mail. Messages sharing a subject but differing in body content
// hash differently and are both kept.
package dedup

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"webcalib-bridge/internal/model"
)

// Content shorter than this after trimming is considered too thin to
// identify a mail; the hash falls back to the message id.
const minContentLength = 10

// DuplicateRecord pairs a dropped message with the first-seen original it
// collided with.
type DuplicateRecord struct {
	Original  model.Message `json:"original"`
	Duplicate model.Message `json:"duplicate"`
	Reason    string        `json:"reason"`
}

// Result is the outcome of one deduplication pass.
// len(Unique) + len(Duplicates) always equals the input length.
type Result struct {
	Unique        []model.Message
	Duplicates    []DuplicateRecord
	SubjectCounts map[string]int
}

// ContentHash digests a message's identity pair. Content is the snippet when
// it is substantial enough, else the decoded body text, else the message id.
func ContentHash(m model.Message) string {
	subject := strings.TrimSpace(m.Header("Subject"))
	content := strings.TrimSpace(m.Snippet)

	if len([]rune(content)) < minContentLength {
		content = strings.TrimSpace(decodeBody(m.Payload.Body))
	}
	if len([]rune(content)) < minContentLength {
		content = m.ID
	}

	sum := sha256.Sum256([]byte(subject + "|||" + content))
	return hex.EncodeToString(sum[:])
}

func decodeBody(b model.Body) string {
	if b.Data == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		// Not valid base64; use the raw head as a stand-in.
		if len(b.Data) > 100 {
			return b.Data[:100]
		}
		return b.Data
	}
	return string(decoded)
}

// Deduplicate walks messages in input order and keeps the first message seen
// for each content hash. Later messages with an already-seen hash are
// recorded as duplicates of that first occurrence.
func Deduplicate(messages []model.Message) Result {
	seen := make(map[string]model.Message)
	result := Result{
		Unique:        make([]model.Message, 0, len(messages)),
		SubjectCounts: make(map[string]int),
	}

	for _, msg := range messages {
		hash := ContentHash(msg)
		subject := msg.Header("Subject")
		if subject == "" {
			subject = "No Subject"
		}
		result.SubjectCounts[subject]++

		if original, ok := seen[hash]; ok {
			result.Duplicates = append(result.Duplicates, DuplicateRecord{
				Original:  original,
				Duplicate: msg,
				Reason:    fmt.Sprintf("identical content (subject: %q)", truncate(subject, 30)),
			})
			logrus.Debugf("Dropping duplicate %s (hash %s)", msg.ID, hash[:8])
			continue
		}

		seen[hash] = msg
		result.Unique = append(result.Unique, msg)
	}

	logrus.Infof("Deduplication: %d in, %d unique, %d removed",
		len(messages), len(result.Unique), len(result.Duplicates))
	return result
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
