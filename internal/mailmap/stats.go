package mailmap

import (
	"sort"
	"time"

	"webcalib-bridge/internal/model"
)

// MailStatistics summarizes a scraped batch before import.
type MailStatistics struct {
	TotalMails           int            `json:"totalMails"`
	UniqueSenders        int            `json:"uniqueSenders"`
	EarliestDate         string         `json:"earliestDate"`
	LatestDate           string         `json:"latestDate"`
	PriorityDistribution map[string]int `json:"priorityDistribution"`
	AttachmentCount      int            `json:"attachmentCount"`
	AverageBodyLength    int            `json:"averageBodyLength"`
}

// Statistics computes summary figures for a raw mail batch.
func (m *Mapper) Statistics(mails []model.RawMail) MailStatistics {
	stats := MailStatistics{PriorityDistribution: make(map[string]int)}
	if len(mails) == 0 {
		return stats
	}

	senders := make(map[string]struct{})
	var dates []time.Time
	var totalBodyLen int

	for _, mail := range mails {
		senders[mail.From] = struct{}{}
		dates = append(dates, m.parseDate(mail.Date))

		priority := mail.Priority
		if priority == "" {
			priority = model.PriorityNormal
		}
		stats.PriorityDistribution[priority]++
		stats.AttachmentCount += len(mail.Attachments)
		totalBodyLen += len([]rune(mail.Body))
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	stats.TotalMails = len(mails)
	stats.UniqueSenders = len(senders)
	stats.EarliestDate = dates[0].Format(time.RFC3339)
	stats.LatestDate = dates[len(dates)-1].Format(time.RFC3339)
	stats.AverageBodyLength = totalBodyLen / len(mails)
	return stats
}
