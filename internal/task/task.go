// Package task defines the record kept for every server-executed background job
// whose progress is observed through status polling.
package task

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Terminal reports whether the status is final. A record in a terminal status
// never transitions back to pending or running.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailure:
		return true
	}
	return false
}

// Record tracks a single server-side job. The ID is assigned by the server
// when the job is started; everything else is mutated only by poll responses.
type Record struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Status        Status          `json:"status"`
	Result        json.RawMessage `json:"result,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
}

func NewRecord(id, kind string) *Record {
	return &Record{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}
