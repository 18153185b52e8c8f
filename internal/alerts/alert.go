// Package alerts implements the crisis-alert feed model, the watermark cursor,
// and the synchronizer that classifies fetched records as seen or new.
package alerts

import "time"

// Alert is a server-emitted crisis record. IDs are monotonic ordinals assigned
// by the server; severity runs 1..5 with 5 being the most severe. The client
// mutates only IsRead, reconciled through a mark-read call.
type Alert struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  int            `json:"severity"`
	AlertType string         `json:"alert_type"`
	CreatedAt time.Time      `json:"created_at"`
	IsRead    bool           `json:"is_read"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

const (
	SeverityMin = 1
	SeverityMax = 5
)
