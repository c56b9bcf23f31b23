package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"webcalib-bridge/internal/model"
)

// GetMails handles GET /api/v1/mails with optional limit, offset, search,
// label, and unreadOnly filters. Stats aggregate over the whole filtered
// set; the mails slice is the requested window of it.
func (h *Handlers) GetMails(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	search := c.Query("search")
	label := c.Query("label")
	unreadOnly := c.Query("unreadOnly") == "true"

	messages := h.store.Search(search)

	var filtered []model.StoredMessage
	for _, msg := range messages {
		if label != "" && !hasLabelFold(msg.Message, label) {
			continue
		}
		if unreadOnly && !msg.HasLabel(model.LabelUnread) {
			continue
		}
		filtered = append(filtered, msg)
	}

	var unread int
	var totalSize int64
	for _, msg := range filtered {
		if msg.HasLabel(model.LabelUnread) {
			unread++
		}
		totalSize += msg.SizeEstimate
	}

	page := paginate(filtered, offset, limit)
	items := make([]MailListItem, 0, len(page))
	for _, msg := range page {
		items = append(items, MailListItem{
			ID:       msg.ID,
			Subject:  msg.Header("Subject"),
			From:     msg.Header("From"),
			To:       msg.Header("To"),
			Date:     msg.Header("Date"),
			IsRead:   !msg.HasLabel(model.LabelUnread),
			ThreadID: msg.ThreadID,
			Snippet:  msg.Snippet,
			Labels:   msg.LabelIDs,
		})
	}

	stats := h.store.Stats()
	c.JSON(http.StatusOK, MailListResponse{
		Success: true,
		Data: &MailListData{
			Mails:      items,
			TotalCount: len(filtered),
			LastSyncAt: stats.LastSyncAt,
			Pagination: Pagination{Limit: limit, Offset: offset, Total: len(filtered)},
			Stats: MailListStats{
				UnreadCount: unread,
				TotalSize:   formatSize(totalSize),
			},
		},
	})
}

// GetStats handles GET /api/v1/stats.
func (h *Handlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.store.Stats(),
	})
}

func hasLabelFold(msg model.Message, label string) bool {
	for _, l := range msg.LabelIDs {
		if strings.Contains(strings.ToLower(l), strings.ToLower(label)) {
			return true
		}
	}
	return false
}

func paginate(messages []model.StoredMessage, offset, limit int) []model.StoredMessage {
	if offset >= len(messages) {
		return nil
	}
	end := offset + limit
	if end > len(messages) {
		end = len(messages)
	}
	return messages[offset:end]
}

func formatSize(bytes int64) string {
	const mb = 1024 * 1024
	if bytes >= mb {
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	}
	return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
}
