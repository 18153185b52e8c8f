// Package notify escalates newly observed alerts into user-visible
// notifications based on a severity threshold, and fans them out to sinks.
package notify

import (
	"strings"
	"time"

	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/logging"
)

// Notification is an ephemeral, time-limited message produced for an escalated
// alert. Duration is how long the rendering surface should keep it on screen.
type Notification struct {
	AlertID  int64         `json:"alert_id"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Icon     string        `json:"icon"`
	Severity int           `json:"severity"`
	Duration time.Duration `json:"duration"`
}

// Sink receives dispatched notifications. The dispatcher holds no rendering
// concerns; anything that can display, store, or forward a notification
// implements Sink.
type Sink interface {
	Notify(n Notification) error
}

// LogSink writes notifications to the logger. It is the default sink when no
// rendering surface is wired in.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	if log == nil {
		log = logging.NewStdLogger()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Notify(n Notification) error {
	s.log.Infof("notification [%s] severity=%d duration=%s %s: %s",
		n.Icon, n.Severity, n.Duration, n.Title, n.Message)
	return nil
}

const GenericIcon = "alert"

// iconKeywords maps substrings of the alert type or metadata values to icons.
// First match wins; the order keeps the more specific entries ahead.
var iconKeywords = []struct {
	keyword string
	icon    string
}{
	{"flood", "flood"},
	{"wildfire", "fire"},
	{"fire", "fire"},
	{"earthquake", "earthquake"},
	{"quake", "earthquake"},
	{"seismic", "earthquake"},
	{"hurricane", "storm"},
	{"cyclone", "storm"},
	{"tornado", "storm"},
	{"storm", "storm"},
	{"outbreak", "medical"},
	{"medical", "medical"},
	{"health", "medical"},
	{"security", "security"},
	{"attack", "security"},
}

// IconFor selects a notification icon by keyword match against the alert type
// and metadata values, falling back to the generic icon.
func IconFor(a alerts.Alert) string {
	haystack := strings.ToLower(a.AlertType)
	for _, v := range a.Metadata {
		if s, ok := v.(string); ok {
			haystack += " " + strings.ToLower(s)
		}
	}

	for _, kw := range iconKeywords {
		if strings.Contains(haystack, kw.keyword) {
			return kw.icon
		}
	}
	return GenericIcon
}
