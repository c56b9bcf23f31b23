package importer

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"webcalib-bridge/internal/config"
	"webcalib-bridge/internal/mailmap"
	"webcalib-bridge/internal/model"
	"webcalib-bridge/internal/store"
)

// fakeFetcher returns canned scrape results.
type fakeFetcher struct {
	mails []model.RawMail
	errs  []string
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, cfg config.ScraperConfig) ([]model.RawMail, []string, error) {
	return f.mails, f.errs, f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	st, err := store.New(db, path)
	require.NoError(t, err)
	return st
}

func importMessage(id, threadID, subject, body string) model.Message {
	return model.Message{
		ID:       id,
		ThreadID: threadID,
		Snippet:  body,
		Payload: model.Payload{
			Headers: []model.Header{{Name: "Subject", Value: subject}},
			Body: model.Body{
				Size: int64(len(body)),
				Data: base64.StdEncoding.EncodeToString([]byte(body)),
			},
		},
	}
}

func scraperConfig() *config.ScraperConfig {
	return &config.ScraperConfig{
		BaseURL:  "https://webcalib.example.jp",
		LoginURL: "https://webcalib.example.jp/login",
		ListURL:  "https://webcalib.example.jp/messages",
		Username: "agent",
		Password: "secret",
	}
}

func TestRunDirectImport(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	thread := model.Thread{
		ID:      "T1",
		Subject: "Hello",
		Messages: []model.Message{
			importMessage("m1", "T1", "Hello", "the first message body"),
			importMessage("m2", "T1", "Re: Hello", "the second message body"),
		},
	}

	report, err := imp.Run(context.Background(), Request{Mode: ModeDirect, Threads: []model.Thread{thread}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ImportedThreads)
	assert.Equal(t, 2, report.ImportedMessages)
	assert.Equal(t, 0, report.DuplicateThreads)
	assert.Empty(t, report.Errors)
	assert.False(t, report.ProcessedAt.IsZero())

	assert.True(t, st.ThreadExists("T1"))
	assert.Len(t, st.Messages(), 2)
}

func TestRunSkipsExistingThread(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	thread := model.Thread{
		ID:       "T1",
		Subject:  "Hello",
		Messages: []model.Message{importMessage("m1", "T1", "Hello", "the message body here")},
	}
	req := Request{Mode: ModeDirect, Threads: []model.Thread{thread}}

	_, err := imp.Run(context.Background(), req)
	require.NoError(t, err)

	// Second import of the same thread is a duplicate, not an error
	report, err := imp.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ImportedThreads)
	assert.Equal(t, 1, report.DuplicateThreads)
	assert.Empty(t, report.Errors)
}

func TestRunDeduplicatesWithinBatch(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	// Same subject and body under two portal ids; one survives
	messages := []model.Message{
		importMessage("m1", "m1", "Notice", "maintenance window saturday night"),
		importMessage("m2", "m2", "Notice", "maintenance window saturday night"),
	}

	report, err := imp.Run(context.Background(), Request{Mode: ModeDirect, Messages: messages})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ImportedMessages)
	assert.True(t, st.MessageExists("m1"))
	assert.False(t, st.MessageExists("m2"))
}

func TestRunStandaloneMessages(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	report, err := imp.Run(context.Background(), Request{
		Mode:     ModeSync,
		Messages: []model.Message{importMessage("m1", "T1", "Solo", "a message without a thread")},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, report.ImportedThreads)
	assert.Equal(t, 1, report.ImportedMessages)
	assert.True(t, st.MessageExists("m1"))
}

func TestRunRecordsWriteFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st, err := store.New(db, path)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)
	thread := model.Thread{
		ID:       "T1",
		Subject:  "Hello",
		Messages: []model.Message{importMessage("m1", "T1", "Hello", "a body that cannot be saved")},
	}

	// A dead store fails per item; the run itself still completes
	report, err := imp.Run(context.Background(), Request{Mode: ModeDirect, Threads: []model.Thread{thread}})
	require.NoError(t, err)
	assert.Equal(t, 0, report.ImportedThreads)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "T1")
}

func TestRunScrapeMode(t *testing.T) {
	st := newTestStore(t)
	fetcher := &fakeFetcher{
		mails: []model.RawMail{
			{ID: "m1", ThreadID: "T1", Subject: "Hello", Body: "scraped body number one", Date: "2024-01-01 10:00:00"},
			{ID: "m2", ThreadID: "T1", Subject: "Re: Hello", Body: "scraped body number two", Date: "2024-01-02 10:00:00"},
		},
		errs: []string{"failed to parse mail at /detail?messageNo=99"},
	}
	imp := New(st, fetcher, mailmap.New(), nil)

	report, err := imp.Run(context.Background(), Request{Mode: ModeScrape, Scraper: scraperConfig()})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ImportedThreads)
	assert.Equal(t, 2, report.ImportedMessages)

	// Non-fatal scrape errors surface in the report
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "messageNo=99")
}

func TestRunScrapeModeRequiresConfig(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	_, err := imp.Run(context.Background(), Request{Mode: ModeScrape})
	assert.Error(t, err)

	_, err = imp.Run(context.Background(), Request{Mode: ModeScrape, Scraper: &config.ScraperConfig{}})
	assert.Error(t, err)
}

func TestRunScrapeModeFetchFailure(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{err: errors.New("context deadline exceeded")}, mailmap.New(), nil)

	_, err := imp.Run(context.Background(), Request{Mode: ModeScrape, Scraper: scraperConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape aborted")
}

func TestRunUnknownMode(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	_, err := imp.Run(context.Background(), Request{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestRunDefaultsToDirect(t *testing.T) {
	st := newTestStore(t)
	imp := New(st, &fakeFetcher{}, mailmap.New(), nil)

	report, err := imp.Run(context.Background(), Request{
		Messages: []model.Message{importMessage("m1", "T1", "S", "default mode message body")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ImportedMessages)
}

func TestFlattenUnionsByID(t *testing.T) {
	shared := importMessage("m1", "T1", "S", "appears in both collections")
	threads := []model.Thread{{ID: "T1", Messages: []model.Message{shared}}}
	messages := []model.Message{shared, importMessage("m2", "m2", "S2", "only in the flat list here")}

	out := flatten(threads, messages)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)
}

func TestRebuildThreadsDropsEmptied(t *testing.T) {
	threads := []model.Thread{
		{ID: "T1", Messages: []model.Message{importMessage("m1", "T1", "S", "kept message body here")}},
		{ID: "T2", Messages: []model.Message{importMessage("m2", "T2", "S", "dropped as a duplicate")}},
	}
	surviving := map[string]struct{}{"m1": {}}

	out := rebuildThreads(threads, surviving)
	require.Len(t, out, 1)
	assert.Equal(t, "T1", out[0].ID)
}
