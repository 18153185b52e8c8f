package notify

import (
	"time"

	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/nadmax/vigil/internal/metrics"
)

const (
	// DefaultHighSeverityThreshold is the minimum severity that escalates an
	// alert into an intrusive notification.
	DefaultHighSeverityThreshold = 4
	// DefaultMaxMessageLength bounds the notification message; longer messages
	// are cut at a rune boundary and end with an ellipsis.
	DefaultMaxMessageLength = 140

	topTierDuration  = 30 * time.Second
	highTierDuration = 10 * time.Second
	baseDuration     = 5 * time.Second
)

// DurationFor scales the on-screen duration by severity tier. The top tier
// stays visible substantially longer than the rest.
func DurationFor(severity int) time.Duration {
	switch {
	case severity >= alerts.SeverityMax:
		return topTierDuration
	case severity >= DefaultHighSeverityThreshold:
		return highTierDuration
	default:
		return baseDuration
	}
}

type Config struct {
	Sinks []Sink
	// HighSeverityThreshold overrides DefaultHighSeverityThreshold when > 0.
	HighSeverityThreshold int
	// MaxMessageLength overrides DefaultMaxMessageLength when > 0.
	MaxMessageLength int
	Logger           logging.Logger
}

// Dispatcher classifies each new-alert event: at or above the threshold it
// formats a notification and emits it to every sink; below the threshold the
// alert is absorbed silently and only contributes to unread counts.
type Dispatcher struct {
	sinks     []Sink
	threshold int
	maxLen    int
	log       logging.Logger
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.HighSeverityThreshold <= 0 {
		cfg.HighSeverityThreshold = DefaultHighSeverityThreshold
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = DefaultMaxMessageLength
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStdLogger()
	}
	sinks := cfg.Sinks
	if len(sinks) == 0 {
		sinks = []Sink{NewLogSink(cfg.Logger)}
	}

	return &Dispatcher{
		sinks:     sinks,
		threshold: cfg.HighSeverityThreshold,
		maxLen:    cfg.MaxMessageLength,
		log:       cfg.Logger,
	}
}

// Dispatch consumes one new-alert event. The cursor never re-emits an id
// already counted as seen, so each alert id reaches the sinks at most once.
func (d *Dispatcher) Dispatch(a alerts.Alert) {
	if a.Severity < d.threshold {
		metrics.RecordNotificationAbsorbed()
		d.log.Debugf("notify: absorbed alert %d (severity %d below threshold %d)", a.ID, a.Severity, d.threshold)
		return
	}

	n := Notification{
		AlertID:  a.ID,
		Title:    a.Title,
		Message:  Truncate(a.Message, d.maxLen),
		Icon:     IconFor(a),
		Severity: a.Severity,
		Duration: DurationFor(a.Severity),
	}

	metrics.RecordNotificationEscalated(a.Severity)
	for _, sink := range d.sinks {
		if err := sink.Notify(n); err != nil {
			d.log.Warnf("notify: sink failed for alert %d: %v", a.ID, err)
		}
	}
}

// Truncate cuts s to at most maxLen runes, marking the cut with an ellipsis.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	return string(runes[:maxLen-1]) + "…"
}
