package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webcalib-bridge/internal/importer"
	"webcalib-bridge/internal/mailmap"
	"webcalib-bridge/internal/model"
	"webcalib-bridge/internal/scraper"
	"webcalib-bridge/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st, err := store.New(db, path)
	require.NoError(t, err)

	imp := importer.New(st, scraper.NewPortalFetcher(), mailmap.New(), nil)
	h := New(db, st, imp, nil)

	router := gin.New()
	h.SetupRoutes(router)
	return router, st
}

func apiMessage(id, threadID, subject, body string, labels ...string) model.Message {
	return model.Message{
		ID:       id,
		ThreadID: threadID,
		LabelIDs: labels,
		Snippet:  body,
		Payload: model.Payload{
			Headers: []model.Header{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: "sender@example.com"},
				{Name: "To", Value: "recipient@example.com"},
				{Name: "Date", Value: "2024-01-15 09:30:00"},
			},
			Body: model.Body{
				Size: int64(len(body)),
				Data: base64.StdEncoding.EncodeToString([]byte(body)),
			},
		},
		SizeEstimate: 512,
	}
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getPath(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestImportEndpointDirect(t *testing.T) {
	router, st := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/import", ImportRequest{
		Mode: "direct",
		Messages: []model.Message{
			apiMessage("m1", "T1", "Hello", "the message body for m1", model.LabelInternalMail),
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, 1, resp.Data.ImportedMessages)
	assert.True(t, st.MessageExists("m1"))
}

func TestImportEndpointRejectsEmptyDirect(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/import", ImportRequest{Mode: "direct"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportEndpointRejectsBadScraperConfig(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing config entirely
	w := postJSON(t, router, "/api/v1/import", ImportRequest{Mode: "scrape"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Config present but incomplete: field errors are listed
	w = postJSON(t, router, "/api/v1/import", map[string]any{
		"mode":          "scrape",
		"scraperConfig": map[string]any{"baseUrl": "https://webcalib.example.jp"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Errors)
}

func TestImportEndpointRejectsUnknownMode(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/import", ImportRequest{Mode: "telepathy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMailsEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	require.NoError(t, st.UpsertMessage(apiMessage("m1", "T1", "Quarterly report", "numbers are in", model.LabelInternalMail, model.LabelUnread)))
	require.NoError(t, st.UpsertMessage(apiMessage("m2", "T2", "Lunch", "sushi friday", model.LabelInternalMail)))

	w := getPath(router, "/api/v1/mails")
	require.Equal(t, http.StatusOK, w.Code)

	var resp MailListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data)
	assert.Equal(t, 2, resp.Data.TotalCount)
	assert.Len(t, resp.Data.Mails, 2)
	assert.Equal(t, 1, resp.Data.Stats.UnreadCount)
	assert.Contains(t, resp.Data.Stats.TotalSize, "KB")

	subjects := []string{resp.Data.Mails[0].Subject, resp.Data.Mails[1].Subject}
	assert.ElementsMatch(t, []string{"Quarterly report", "Lunch"}, subjects)
	assert.Equal(t, "sender@example.com", resp.Data.Mails[0].From)
}

func TestGetMailsFilters(t *testing.T) {
	router, st := newTestRouter(t)

	require.NoError(t, st.UpsertMessage(apiMessage("m1", "T1", "Quarterly report", "numbers are in", model.LabelInternalMail, model.LabelUnread)))
	require.NoError(t, st.UpsertMessage(apiMessage("m2", "T2", "Lunch", "sushi friday", model.LabelInternalMail)))

	// Search by subject
	var resp MailListResponse
	w := getPath(router, "/api/v1/mails?search=quarterly")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.TotalCount)

	// Unread only
	w = getPath(router, "/api/v1/mails?unreadOnly=true")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.TotalCount)
	assert.Equal(t, "m1", resp.Data.Mails[0].ID)

	// Label filter is case-insensitive
	w = getPath(router, "/api/v1/mails?label=unread")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.TotalCount)

	// Pagination
	w = getPath(router, "/api/v1/mails?limit=1&offset=1")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.TotalCount)
	assert.Len(t, resp.Data.Mails, 1)
	assert.Equal(t, 1, resp.Data.Pagination.Offset)

	// Offset past the end yields an empty page, not an error
	w = getPath(router, "/api/v1/mails?offset=50")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Mails)
}

func TestGetStatsEndpoint(t *testing.T) {
	router, st := newTestRouter(t)
	require.NoError(t, st.UpsertMessage(apiMessage("m1", "T1", "S", "some body text", model.LabelInternalMail)))

	w := getPath(router, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messageCount":1`)
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := getPath(router, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "stopped", resp.Details["scheduler"])
}

func TestSchedulerEndpointsWhenDisabled(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postJSON(t, router, "/api/v1/scheduler/start", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "scheduler is not enabled", errResp.Error)
	assert.Equal(t, http.StatusNotFound, errResp.Code)

	w = getPath(router, "/api/v1/scheduler/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")
}
