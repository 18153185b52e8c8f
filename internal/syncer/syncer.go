// Package syncer composes the synchronization layer into one explicit,
// instantiable context: the task registry and poller, the alert synchronizer,
// the notification dispatcher, and the unread counter sync. Multiple
// independent contexts can coexist; tearing one down stops its timers
// synchronously and drops any in-flight responses.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/backend"
	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/nadmax/vigil/internal/notify"
	"github.com/nadmax/vigil/internal/poller"
	"github.com/nadmax/vigil/internal/registry"
	"github.com/nadmax/vigil/internal/task"
	"github.com/nadmax/vigil/internal/unread"
)

// Checkpoint persists the cursor watermark and badge count across restarts.
type Checkpoint interface {
	alerts.CheckpointStore
	unread.CheckpointStore
}

type Config struct {
	Client *backend.Client
	Logger logging.Logger
	// Checkpoint is optional.
	Checkpoint Checkpoint
	// Sinks receive escalated notifications; defaults to a log sink.
	Sinks []notify.Sink
	// OnTerminal is invoked once per task reaching a terminal status.
	OnTerminal func(task.Record)
	// OnSessionExpired hands off to re-authentication after all timers halt.
	OnSessionExpired func()

	TaskInterval          time.Duration
	AlertInterval         time.Duration
	UnreadInterval        time.Duration
	AlertPageLimit        int
	HighSeverityThreshold int
	MaxMessageLength      int
}

type Syncer struct {
	client     *backend.Client
	reg        *registry.Registry
	tasks      *poller.Poller
	alerts     *alerts.Synchronizer
	unread     *unread.Sync
	dispatcher *notify.Dispatcher
	log        logging.Logger

	onSessionExpired func()
	expireOnce       sync.Once
	closeOnce        sync.Once
}

func New(cfg Config) *Syncer {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStdLogger()
	}

	s := &Syncer{
		client:           cfg.Client,
		reg:              registry.New(),
		log:              cfg.Logger,
		onSessionExpired: cfg.OnSessionExpired,
	}

	s.dispatcher = notify.NewDispatcher(notify.Config{
		Sinks:                 cfg.Sinks,
		HighSeverityThreshold: cfg.HighSeverityThreshold,
		MaxMessageLength:      cfg.MaxMessageLength,
		Logger:                cfg.Logger,
	})

	s.tasks = poller.New(poller.Config{
		Registry:         s.reg,
		Client:           cfg.Client,
		Interval:         cfg.TaskInterval,
		Logger:           cfg.Logger,
		OnTerminal:       cfg.OnTerminal,
		OnSessionExpired: s.sessionExpired,
	})

	s.alerts = alerts.NewSynchronizer(alerts.Config{
		Client:           cfg.Client,
		Handler:          s.dispatcher.Dispatch,
		Interval:         cfg.AlertInterval,
		PageLimit:        cfg.AlertPageLimit,
		Checkpoint:       cfg.Checkpoint,
		Logger:           cfg.Logger,
		OnSessionExpired: s.sessionExpired,
	})

	s.unread = unread.New(unread.Config{
		Client:           cfg.Client,
		Interval:         cfg.UnreadInterval,
		Checkpoint:       cfg.Checkpoint,
		Logger:           cfg.Logger,
		OnSessionExpired: s.sessionExpired,
	})

	return s
}

// Start launches the alert and unread pollers. The task poller starts on its
// own when the first task is tracked.
func (s *Syncer) Start() {
	s.alerts.Start()
	s.unread.Start()
}

// Close tears the context down: every owned timer is cleared synchronously and
// any still-pending response is dropped rather than applied.
func (s *Syncer) Close() {
	s.closeOnce.Do(func() {
		s.tasks.Close()
		s.alerts.Close()
		s.unread.Close()
	})
}

// sessionExpired is the global 401 handler: all pollers halt and control hands
// off to the re-authentication flow. It never retries.
func (s *Syncer) sessionExpired() {
	s.expireOnce.Do(func() {
		s.log.Errorf("syncer: session expired, halting all pollers")
		s.Close()
		if s.onSessionExpired != nil {
			s.onSessionExpired()
		}
	})
}

// StartTask asks the backend to launch a background job and begins tracking
// it. Failures propagate synchronously to the caller; this is an
// operator-initiated action, not a background poll.
func (s *Syncer) StartTask(ctx context.Context, kind string, params map[string]any) (string, error) {
	id, err := s.client.StartTask(ctx, kind, params)
	if err != nil {
		if httputil.IsSessionExpired(err) {
			s.sessionExpired()
		}
		return "", err
	}

	s.tasks.Track(id, kind)
	s.log.Infof("syncer: started task %s (kind %s)", id, kind)
	return id, nil
}

// Registry exposes the task registry for read access.
func (s *Syncer) Registry() *registry.Registry { return s.reg }

// Tasks exposes the task poller for remove/clear operator actions.
func (s *Syncer) Tasks() *poller.Poller { return s.tasks }

// Unread exposes the unread counter sync for badge reads and mark-read actions.
func (s *Syncer) Unread() *unread.Sync { return s.unread }

// AlertWatermark returns the alert cursor's current watermark.
func (s *Syncer) AlertWatermark() int64 { return s.alerts.MaxSeenID() }

// SyncAlertsNow runs one on-demand alert fetch outside the schedule.
func (s *Syncer) SyncAlertsNow(ctx context.Context) error {
	return s.alerts.SyncNow(ctx)
}
