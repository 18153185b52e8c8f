package history

import (
	"context"
	"time"

	"github.com/nadmax/vigil/internal/notify"
)

// Sink archives every escalated notification. It plugs into the dispatcher
// alongside the rendering sinks.
type Sink struct {
	archive *PostgresArchive
	timeout time.Duration
}

func NewSink(archive *PostgresArchive) *Sink {
	return &Sink{archive: archive, timeout: 5 * time.Second}
}

func (s *Sink) Notify(n notify.Notification) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.archive.RecordNotification(ctx, n)
}
