package models

import (
	"encoding/json"
	"time"
)

// Entry is the envelope persisted for every cached value.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Version   string          `json:"version"`
}

// NewEntry creates an Entry stamped with now.
func NewEntry(data []byte, now time.Time, version string) *Entry {
	return &Entry{
		Data:      data,
		Timestamp: now.UnixMilli(),
		Version:   version,
	}
}

// Age returns how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-e.Timestamp) * time.Millisecond
}

// IsValid reports whether the entry carries version and is younger than ttl.
func (e *Entry) IsValid(now time.Time, version string, ttl time.Duration) bool {
	if e.Version != version {
		return false
	}
	return e.Age(now) < ttl
}
