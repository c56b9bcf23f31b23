package model

import "time"

// StoredThread is a thread as returned by the store: the thread itself plus
// bookkeeping timestamps. CreatedAt is set on first insert and survives every
// later upsert of the same id; UpdatedAt is refreshed on each write.
type StoredThread struct {
	Thread
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredMessage is the persisted form of a Message.
type StoredMessage struct {
	Message
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoreStats summarizes the persisted state.
type StoreStats struct {
	ThreadCount  int       `json:"threadCount"`
	MessageCount int       `json:"messageCount"`
	LastSyncAt   time.Time `json:"lastSyncAt"`
	StorageSize  string    `json:"storageSize"`
}
