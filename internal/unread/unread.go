// Package unread reconciles the unread badge count with on-demand full-list
// fetches and mark-read actions. The scalar summary endpoint is the sole
// source of truth for the badge; the full list is fetched lazily.
package unread

import (
	"context"
	"sync"
	"time"

	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/nadmax/vigil/internal/metrics"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultPageLimit = 50
)

type Client interface {
	GetUnreadCount(ctx context.Context) (int, error)
	ListAlerts(ctx context.Context, skip, limit int) ([]alerts.Alert, error)
	MarkAlertRead(ctx context.Context, alertID int64) error
	MarkAllRead(ctx context.Context) error
}

// CheckpointStore persists the badge count so it can be shown at startup
// before the first poll completes.
type CheckpointStore interface {
	LoadUnread(ctx context.Context) (int, error)
	SaveUnread(ctx context.Context, count int) error
}

type Config struct {
	Client    Client
	Interval  time.Duration
	PageLimit int
	// Checkpoint is optional.
	Checkpoint CheckpointStore
	Logger     logging.Logger
	// OnSessionExpired is invoked once when any call reports HTTP 401.
	OnSessionExpired func()
}

type Sync struct {
	client           Client
	interval         time.Duration
	pageLimit        int
	checkpoint       CheckpointStore
	log              logging.Logger
	onSessionExpired func()

	mu         sync.Mutex
	count      int
	list       []alerts.Alert
	listLoaded bool
	inFlight   bool
	running    bool
	closed     bool
	stopCh     chan struct{}
}

func New(cfg Config) *Sync {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStdLogger()
	}

	return &Sync{
		client:           cfg.Client,
		interval:         cfg.Interval,
		pageLimit:        cfg.PageLimit,
		checkpoint:       cfg.Checkpoint,
		log:              cfg.Logger,
		onSessionExpired: cfg.OnSessionExpired,
	}
}

// Start launches the periodic count poll. It is idempotent.
func (s *Sync) Start() {
	s.mu.Lock()
	if s.running || s.closed {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	if s.checkpoint != nil {
		if count, err := s.checkpoint.LoadUnread(context.Background()); err != nil {
			s.log.Warnf("unread: checkpoint restore failed: %v", err)
		} else {
			s.mu.Lock()
			s.count = count
			s.mu.Unlock()
			metrics.UpdateUnreadCount(count)
		}
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.RefreshCount(context.Background()); err != nil {
					s.log.Warnf("unread: count poll failed, retrying next tick: %v", err)
				}
			}
		}
	}()
}

// Close stops the periodic poll synchronously.
func (s *Sync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.running {
		close(s.stopCh)
		s.running = false
	}
}

// Count returns the last reconciled badge count.
func (s *Sync) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// RefreshCount fetches the scalar count from the summary endpoint. A fetch
// already in flight makes this a no-op.
func (s *Sync) RefreshCount(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.mu.Unlock()

	metrics.RecordPollTick("unread")
	count, err := s.client.GetUnreadCount(ctx)

	s.mu.Lock()
	s.inFlight = false
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		metrics.RecordPollError("unread", httputil.ErrorClass(err))
		if httputil.IsSessionExpired(err) {
			s.Close()
			if s.onSessionExpired != nil {
				s.onSessionExpired()
			}
		}
		return err
	}
	s.count = count
	s.mu.Unlock()

	metrics.UpdateUnreadCount(count)
	if s.checkpoint != nil {
		if err := s.checkpoint.SaveUnread(ctx, count); err != nil {
			s.log.Warnf("unread: checkpoint save failed: %v", err)
		}
	}
	return nil
}

// Alerts returns the full alert list, fetching it on first use. The list is
// not kept continuously in sync with the counter poll.
func (s *Sync) Alerts(ctx context.Context) ([]alerts.Alert, error) {
	s.mu.Lock()
	if s.listLoaded {
		out := make([]alerts.Alert, len(s.list))
		copy(out, s.list)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.reloadList(ctx)
}

func (s *Sync) reloadList(ctx context.Context) ([]alerts.Alert, error) {
	page, err := s.client.ListAlerts(ctx, 0, s.pageLimit)
	if err != nil {
		if httputil.IsSessionExpired(err) {
			s.Close()
			if s.onSessionExpired != nil {
				s.onSessionExpired()
			}
		}
		return nil, err
	}

	s.mu.Lock()
	s.list = page
	s.listLoaded = true
	out := make([]alerts.Alert, len(page))
	copy(out, page)
	s.mu.Unlock()
	return out, nil
}

// MarkRead marks one alert as read. The local flag and counter update
// immediately; the server count and the loaded list are then reconciled with
// direct calls instead of waiting for the next scheduled tick.
func (s *Sync) MarkRead(ctx context.Context, alertID int64) error {
	if err := s.client.MarkAlertRead(ctx, alertID); err != nil {
		if httputil.IsSessionExpired(err) {
			s.Close()
			if s.onSessionExpired != nil {
				s.onSessionExpired()
			}
		}
		return err
	}

	s.mu.Lock()
	for i := range s.list {
		if s.list[i].ID != alertID {
			continue
		}
		if !s.list[i].IsRead {
			s.list[i].IsRead = true
			if s.count > 0 {
				s.count--
			}
		}
		break
	}
	count := s.count
	listLoaded := s.listLoaded
	s.mu.Unlock()
	metrics.UpdateUnreadCount(count)

	s.reconcile(ctx, listLoaded)
	return nil
}

// MarkAll marks every alert as read and zeroes the badge immediately.
func (s *Sync) MarkAll(ctx context.Context) error {
	if err := s.client.MarkAllRead(ctx); err != nil {
		if httputil.IsSessionExpired(err) {
			s.Close()
			if s.onSessionExpired != nil {
				s.onSessionExpired()
			}
		}
		return err
	}

	s.mu.Lock()
	for i := range s.list {
		s.list[i].IsRead = true
	}
	s.count = 0
	listLoaded := s.listLoaded
	s.mu.Unlock()
	metrics.UpdateUnreadCount(0)

	s.reconcile(ctx, listLoaded)
	return nil
}

// reconcile refreshes the counter and, when already loaded, the full list.
// Failures here are passive: the next scheduled tick retries.
func (s *Sync) reconcile(ctx context.Context, listLoaded bool) {
	if err := s.RefreshCount(ctx); err != nil {
		s.log.Warnf("unread: post-mark count refresh failed: %v", err)
	}
	if listLoaded {
		if _, err := s.reloadList(ctx); err != nil {
			s.log.Warnf("unread: post-mark list refresh failed: %v", err)
		}
	}
}
