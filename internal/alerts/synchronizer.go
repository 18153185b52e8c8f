package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/nadmax/vigil/internal/metrics"
)

const (
	DefaultInterval  = 30 * time.Second
	DefaultPageLimit = 20
)

// FeedClient fetches the most recent page of the alert feed, descending by recency.
type FeedClient interface {
	ListAlerts(ctx context.Context, skip, limit int) ([]Alert, error)
}

// CheckpointStore persists the cursor watermark across daemon restarts.
type CheckpointStore interface {
	LoadCursor(ctx context.Context) (int64, error)
	SaveCursor(ctx context.Context, maxSeenID int64) error
}

// Handler consumes one newly observed alert. The synchronizer invokes it once
// per alert id for the lifetime of the synchronizer, oldest-first.
type Handler func(Alert)

type Config struct {
	Client    FeedClient
	Handler   Handler
	Interval  time.Duration
	PageLimit int
	// Checkpoint is optional; without it the watermark starts at zero.
	Checkpoint CheckpointStore
	Logger     logging.Logger
	// OnSessionExpired is invoked once when a fetch reports HTTP 401.
	// The synchronizer halts itself before calling it.
	OnSessionExpired func()
}

// Synchronizer periodically fetches the alert feed and emits records above the
// cursor watermark to the handler. Fetch failures skip delta computation for
// that tick without mutating the cursor.
type Synchronizer struct {
	client           FeedClient
	handler          Handler
	interval         time.Duration
	pageLimit        int
	checkpoint       CheckpointStore
	log              logging.Logger
	onSessionExpired func()

	mu       sync.Mutex
	cursor   *Cursor
	inFlight bool
	running  bool
	closed   bool
	stopCh   chan struct{}
}

func NewSynchronizer(cfg Config) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStdLogger()
	}
	if cfg.Handler == nil {
		cfg.Handler = func(Alert) {}
	}

	return &Synchronizer{
		client:           cfg.Client,
		handler:          cfg.Handler,
		interval:         cfg.Interval,
		pageLimit:        cfg.PageLimit,
		checkpoint:       cfg.Checkpoint,
		log:              cfg.Logger,
		onSessionExpired: cfg.OnSessionExpired,
		cursor:           NewCursor(0),
	}
}

// MaxSeenID returns the current cursor watermark.
func (s *Synchronizer) MaxSeenID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.MaxSeenID()
}

// Start restores the checkpointed watermark and launches the periodic fetch.
// It is idempotent.
func (s *Synchronizer) Start() {
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
		if id, err := s.checkpoint.LoadCursor(context.Background()); err != nil {
			s.log.Warnf("alerts: checkpoint restore failed: %v", err)
		} else if id > 0 {
			s.mu.Lock()
			s.cursor.Advance(id)
			s.mu.Unlock()
			s.log.Infof("alerts: resumed cursor at id=%d", id)
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
				if err := s.SyncNow(context.Background()); err != nil {
					s.log.Warnf("alerts: sync failed, retrying next tick: %v", err)
				}
			}
		}
	}()
}

// Close stops the periodic fetch synchronously. Any fetch still in flight
// finishes as a no-op: its page is dropped without touching the cursor.
func (s *Synchronizer) Close() {
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

// SyncNow performs one fetch-and-classify pass. A pass already in flight makes
// this a no-op; the per-feed guard prevents overlapping requests.
func (s *Synchronizer) SyncNow(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.mu.Unlock()

	metrics.RecordPollTick("alerts")
	page, err := s.client.ListAlerts(ctx, 0, s.pageLimit)

	s.mu.Lock()
	s.inFlight = false
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		metrics.RecordPollError("alerts", httputil.ErrorClass(err))
		if httputil.IsSessionExpired(err) {
			s.Close()
			if s.onSessionExpired != nil {
				s.onSessionExpired()
			}
		}
		return err
	}

	fresh := make([]Alert, 0, len(page))
	var pageMax int64
	for _, a := range page {
		if a.ID > pageMax {
			pageMax = a.ID
		}
		if a.ID > s.cursor.MaxSeenID() {
			fresh = append(fresh, a)
		}
	}
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

	if len(fresh) > 0 {
		s.cursor.Advance(fresh[len(fresh)-1].ID)
	} else if len(page) > 0 && pageMax < s.cursor.MaxSeenID() {
		// Feed reset or filter change: the watermark never regresses.
		metrics.RecordFeedDiscontinuity()
		s.log.Debugf("alerts: feed discontinuity, page max %d below watermark %d", pageMax, s.cursor.MaxSeenID())
	}
	watermark := s.cursor.MaxSeenID()
	s.mu.Unlock()

	metrics.RecordAlertsFetched(len(page))

	if len(fresh) > 0 && s.checkpoint != nil {
		if err := s.checkpoint.SaveCursor(ctx, watermark); err != nil {
			s.log.Warnf("alerts: checkpoint save failed: %v", err)
		}
	}

	for _, a := range fresh {
		metrics.RecordNewAlert(a.Severity)
		s.handler(a)
	}
	return nil
}
