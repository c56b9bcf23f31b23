package dedup

import (
	"fmt"
	"strings"

	"webcalib-bridge/internal/model"
)

// SubjectGroup summarizes all messages sharing one subject.
type SubjectGroup struct {
	Count          int             `json:"count"`
	UniqueContents int             `json:"uniqueContents"`
	Messages       []GroupedMember `json:"messages"`
}

// GroupedMember identifies one message inside a subject group.
type GroupedMember struct {
	ID          string `json:"id"`
	ContentHash string `json:"contentHash"`
	Snippet     string `json:"snippet"`
}

// AnalyzeSubjects groups messages by subject and counts the distinct content
// hashes inside each group, without mutating or filtering anything. A group
// with UniqueContents > 1 holds same-subject mails with different bodies,
// which deduplication must never collapse.
func AnalyzeSubjects(messages []model.Message) map[string]SubjectGroup {
	groups := make(map[string]SubjectGroup)
	hashes := make(map[string]map[string]struct{})

	for _, msg := range messages {
		subject := msg.Header("Subject")
		if subject == "" {
			subject = "No Subject"
		}

		hash := ContentHash(msg)
		snippet := msg.Snippet
		if snippet == "" {
			snippet = truncate(msg.ID, 20)
		}

		group := groups[subject]
		group.Count++
		group.Messages = append(group.Messages, GroupedMember{
			ID:          msg.ID,
			ContentHash: hash,
			Snippet:     truncate(snippet, 100),
		})

		if hashes[subject] == nil {
			hashes[subject] = make(map[string]struct{})
		}
		if _, ok := hashes[subject][hash]; !ok {
			hashes[subject][hash] = struct{}{}
			group.UniqueContents++
		}
		groups[subject] = group
	}

	return groups
}

// Report renders a human-readable summary of a deduplication pass, listing
// up to ten removed duplicates.
func Report(originalCount int, result Result) string {
	var b strings.Builder

	removalRate := 0.0
	if originalCount > 0 {
		removalRate = float64(len(result.Duplicates)) / float64(originalCount) * 100
	}

	fmt.Fprintf(&b, "Deduplication report\n")
	fmt.Fprintf(&b, "  total:     %d\n", originalCount)
	fmt.Fprintf(&b, "  unique:    %d\n", len(result.Unique))
	fmt.Fprintf(&b, "  removed:   %d (%.1f%%)\n", len(result.Duplicates), removalRate)

	for i, dup := range result.Duplicates {
		if i == 10 {
			fmt.Fprintf(&b, "  ... %d more\n", len(result.Duplicates)-10)
			break
		}
		fmt.Fprintf(&b, "  %d. %s\n", i+1, dup.Reason)
	}

	return strings.TrimRight(b.String(), "\n")
}
