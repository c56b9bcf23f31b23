// Package store persists threads and messages with upsert-by-id semantics.
//
// Writes are serialized by a mutex and wrapped in a transaction so that
// concurrent imports cannot lose updates. Reads degrade: a missing or
// unreadable store yields empty collections, never an error, while write
// failures always propagate to the caller.
package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"webcalib-bridge/internal/model"
)

// threadRow is the persisted form of a thread: the id for keying plus the
// full thread serialized as JSON, so the part tree survives round-trips
// without a dozen join tables.
// Timestamp tracking is disabled on both rows: the store's clock decides
// CreatedAt and UpdatedAt so upserts can preserve the original CreatedAt.
type threadRow struct {
	ID        string    `gorm:"primaryKey;size:255"`
	Doc       string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (threadRow) TableName() string { return "threads" }

type messageRow struct {
	ID        string    `gorm:"primaryKey;size:255"`
	ThreadID  string    `gorm:"size:255;index"`
	Doc       string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (messageRow) TableName() string { return "messages" }

// Store is the idempotent persistence layer.
type Store struct {
	db   *gorm.DB
	path string // backing file for sqlite; empty otherwise
	now  func() time.Time
	mu   sync.Mutex
}

// New migrates the schema and returns a ready store. path names the on-disk
// database file when the backend is file-based; pass "" otherwise.
func New(db *gorm.DB, path string) (*Store, error) {
	if err := db.AutoMigrate(&threadRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store schema: %w", err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// UpsertThread inserts the thread or replaces the stored one with the same
// id, preserving its original CreatedAt. Every member message is upserted in
// the same transaction.
func (s *Store) UpsertThread(thread model.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.upsertThreadTx(tx, thread); err != nil {
			return err
		}
		for _, msg := range thread.Messages {
			if err := s.upsertMessageTx(tx, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertMessage inserts or replaces a single message, preserving CreatedAt
// on replace.
func (s *Store) UpsertMessage(msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.upsertMessageTx(tx, msg)
	})
}

func (s *Store) upsertThreadTx(tx *gorm.DB, thread model.Thread) error {
	doc, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("failed to serialize thread %s: %w", thread.ID, err)
	}

	now := s.now()
	row := threadRow{ID: thread.ID, Doc: string(doc), CreatedAt: now, UpdatedAt: now}

	var existing threadRow
	switch err := tx.First(&existing, "id = ?", thread.ID).Error; {
	case err == nil:
		row.CreatedAt = existing.CreatedAt
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return fmt.Errorf("failed to look up thread %s: %w", thread.ID, err)
	}

	if err := tx.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save thread %s: %w", thread.ID, err)
	}
	return nil
}

func (s *Store) upsertMessageTx(tx *gorm.DB, msg model.Message) error {
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message %s: %w", msg.ID, err)
	}

	now := s.now()
	row := messageRow{ID: msg.ID, ThreadID: msg.ThreadID, Doc: string(doc), CreatedAt: now, UpdatedAt: now}

	var existing messageRow
	switch err := tx.First(&existing, "id = ?", msg.ID).Error; {
	case err == nil:
		row.CreatedAt = existing.CreatedAt
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return fmt.Errorf("failed to look up message %s: %w", msg.ID, err)
	}

	if err := tx.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
	}
	return nil
}

// Threads returns every stored thread, most recently created first. Rows
// that cannot be read or decoded are skipped.
func (s *Store) Threads() []model.StoredThread {
	var rows []threadRow
	if err := s.db.Order("created_at DESC").Find(&rows).Error; err != nil {
		logrus.Errorf("Failed to read threads: %v", err)
		return nil
	}

	threads := make([]model.StoredThread, 0, len(rows))
	for _, row := range rows {
		var thread model.Thread
		if err := json.Unmarshal([]byte(row.Doc), &thread); err != nil {
			logrus.Warnf("Skipping corrupt thread record %s: %v", row.ID, err)
			continue
		}
		threads = append(threads, model.StoredThread{
			Thread:    thread,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return threads
}

// Messages returns every stored message, most recently created first.
func (s *Store) Messages() []model.StoredMessage {
	var rows []messageRow
	if err := s.db.Order("created_at DESC").Find(&rows).Error; err != nil {
		logrus.Errorf("Failed to read messages: %v", err)
		return nil
	}

	messages := make([]model.StoredMessage, 0, len(rows))
	for _, row := range rows {
		var msg model.Message
		if err := json.Unmarshal([]byte(row.Doc), &msg); err != nil {
			logrus.Warnf("Skipping corrupt message record %s: %v", row.ID, err)
			continue
		}
		messages = append(messages, model.StoredMessage{
			Message:   msg,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return messages
}

// ThreadExists reports whether a thread with the given id is stored.
func (s *Store) ThreadExists(id string) bool {
	var count int64
	if err := s.db.Model(&threadRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		logrus.Errorf("Failed to check thread %s: %v", id, err)
		return false
	}
	return count > 0
}

// MessageExists reports whether a message with the given id is stored.
func (s *Store) MessageExists(id string) bool {
	var count int64
	if err := s.db.Model(&messageRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
		logrus.Errorf("Failed to check message %s: %v", id, err)
		return false
	}
	return count > 0
}

// Search returns messages whose subject, From header, or decoded body text
// contains the query, case-insensitively. An empty query returns everything.
// The decoded-body match requires a full scan, which is fine at the volumes
// this store holds.
func (s *Store) Search(query string) []model.StoredMessage {
	all := s.Messages()
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return all
	}

	var matched []model.StoredMessage
	for _, msg := range all {
		if strings.Contains(strings.ToLower(msg.Header("Subject")), term) ||
			strings.Contains(strings.ToLower(msg.Header("From")), term) ||
			strings.Contains(strings.ToLower(decodeBodyText(msg.Message)), term) {
			matched = append(matched, msg)
		}
	}
	return matched
}

func decodeBodyText(msg model.Message) string {
	body := msg.Payload.Body
	if len(msg.Payload.Parts) > 0 {
		body = msg.Payload.Parts[0].Body
	}
	if body.Data == "" {
		return ""
	}
	decoded, err := base64Decode(body.Data)
	if err != nil {
		return body.Data
	}
	return decoded
}

// Stats summarizes the store: record counts, the creation time of the newest
// message as the last sync marker, and the on-disk size of the backing file.
func (s *Store) Stats() model.StoreStats {
	threads := s.Threads()
	messages := s.Messages()

	lastSync := s.now()
	if len(messages) > 0 {
		lastSync = messages[0].CreatedAt
	}

	return model.StoreStats{
		ThreadCount:  len(threads),
		MessageCount: len(messages),
		LastSyncAt:   lastSync,
		StorageSize:  fmt.Sprintf("%.1f KB", float64(s.storageBytes())/1024),
	}
}

func (s *Store) storageBytes() int64 {
	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			return info.Size()
		}
		return 0
	}

	// No backing file to stat; approximate with the serialized row sizes.
	var total int64
	var threadRows []threadRow
	if err := s.db.Find(&threadRows).Error; err == nil {
		for _, row := range threadRows {
			total += int64(len(row.Doc))
		}
	}
	var msgRows []messageRow
	if err := s.db.Find(&msgRows).Error; err == nil {
		for _, row := range msgRows {
			total += int64(len(row.Doc))
		}
	}
	return total
}

func base64Decode(data string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
