// Package poller drives periodic status fetches for every non-terminal task in
// the registry. A single shared timer runs for as long as the registry is
// non-empty; each tick reads the live registry, never a snapshot captured at
// start time.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/nadmax/vigil/internal/backend"
	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/nadmax/vigil/internal/metrics"
	"github.com/nadmax/vigil/internal/registry"
	"github.com/nadmax/vigil/internal/task"
)

const DefaultInterval = 3 * time.Second

// StatusClient fetches the current status of one background job.
type StatusClient interface {
	GetTaskStatus(ctx context.Context, taskID string) (*backend.TaskStatus, error)
}

type Config struct {
	Registry *registry.Registry
	Client   StatusClient
	Interval time.Duration
	Logger   logging.Logger
	// OnTerminal is invoked once with the final record when a task reaches
	// success or failure.
	OnTerminal func(task.Record)
	// OnSessionExpired is invoked once when a poll reports HTTP 401. The
	// poller halts itself before calling it.
	OnSessionExpired func()
}

type Poller struct {
	reg              *registry.Registry
	client           StatusClient
	interval         time.Duration
	log              logging.Logger
	onTerminal       func(task.Record)
	onSessionExpired func()

	mu       sync.Mutex
	running  bool
	closed   bool
	stopCh   chan struct{}
	inFlight map[string]bool
	seq      map[string]uint64
	// skip holds ids whose status request failed permanently (4xx other than
	// 401); they are surfaced once and never retried with the same input.
	skip map[string]bool
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewStdLogger()
	}

	return &Poller{
		reg:              cfg.Registry,
		client:           cfg.Client,
		interval:         cfg.Interval,
		log:              cfg.Logger,
		onTerminal:       cfg.OnTerminal,
		onSessionExpired: cfg.OnSessionExpired,
		inFlight:         make(map[string]bool),
		seq:              make(map[string]uint64),
		skip:             make(map[string]bool),
	}
}

// Track registers a server-assigned task id as pending and starts the shared
// timer if it is not already running. Tracking an id twice is a no-op.
func (p *Poller) Track(id, kind string) {
	if !p.reg.Register(id, kind) {
		return
	}
	p.updateGauges()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if !p.running {
		p.startLocked()
	}
}

// Remove drops a task from the registry. The timer is stopped synchronously
// when the registry becomes empty.
func (p *Poller) Remove(id string) {
	p.reg.Remove(id)

	p.mu.Lock()
	delete(p.skip, id)
	delete(p.seq, id)
	if p.running && p.reg.IsEmpty() {
		p.stopLocked()
	}
	p.mu.Unlock()

	p.updateGauges()
}

// Clear drops every task and stops the timer synchronously.
func (p *Poller) Clear() {
	p.reg.Clear()

	p.mu.Lock()
	p.skip = make(map[string]bool)
	p.seq = make(map[string]uint64)
	if p.running {
		p.stopLocked()
	}
	p.mu.Unlock()

	p.updateGauges()
}

// Close tears the poller down: the timer is cleared synchronously and the
// liveness flag flips so any in-flight completion becomes a no-op.
func (p *Poller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.running {
		p.stopLocked()
	}
}

// Running reports whether the shared timer is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) startLocked() {
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.tick()
			}
		}
	}()
}

func (p *Poller) stopLocked() {
	close(p.stopCh)
	p.running = false
}

type pollRequest struct {
	id  string
	seq uint64
}

// tick issues one status request for every non-terminal task that has no
// request already in flight.
func (p *Poller) tick() {
	p.mu.Lock()
	if p.closed || !p.running {
		p.mu.Unlock()
		return
	}

	ids := p.reg.ActiveIDs()
	var launch []pollRequest
	for _, id := range ids {
		if p.inFlight[id] || p.skip[id] {
			continue
		}
		p.inFlight[id] = true
		p.seq[id]++
		launch = append(launch, pollRequest{id: id, seq: p.seq[id]})
	}
	p.mu.Unlock()

	metrics.RecordPollTick("tasks")
	for _, req := range launch {
		go p.poll(req.id, req.seq)
	}
}

func (p *Poller) poll(id string, seq uint64) {
	start := time.Now()
	status, err := p.client.GetTaskStatus(context.Background(), id)
	metrics.RecordTaskPoll(time.Since(start))
	p.apply(id, seq, status, err)
}

// apply handles one poll response. Responses arriving after teardown, and
// responses whose originating request is no longer the most recent one issued
// for the id, are discarded.
func (p *Poller) apply(id string, seq uint64, status *backend.TaskStatus, pollErr error) {
	p.mu.Lock()
	p.inFlight[id] = false
	if p.closed {
		p.mu.Unlock()
		return
	}
	if seq != p.seq[id] {
		p.mu.Unlock()
		metrics.RecordStaleResponse()
		p.log.Debugf("tasks: discarded stale response for %s", id)
		return
	}

	if pollErr != nil {
		metrics.RecordPollError("tasks", httputil.ErrorClass(pollErr))
		switch {
		case httputil.IsSessionExpired(pollErr):
			p.closed = true
			if p.running {
				p.stopLocked()
			}
			p.mu.Unlock()
			p.log.Errorf("tasks: session expired, halting poller")
			if p.onSessionExpired != nil {
				p.onSessionExpired()
			}
		case httputil.IsPermanent(pollErr):
			p.skip[id] = true
			p.mu.Unlock()
			p.log.Errorf("tasks: status request for %s failed permanently: %v", id, pollErr)
		default:
			p.mu.Unlock()
			p.log.Warnf("tasks: poll for %s failed, retrying next tick: %v", id, pollErr)
		}
		return
	}
	p.mu.Unlock()

	if !p.reg.ApplyStatus(id, status.Status, status.Result) {
		return
	}
	p.updateGauges()

	if status.Status.Terminal() {
		p.log.Infof("tasks: %s finished with status %s", id, status.Status)
		if rec, ok := p.reg.Get(id); ok && p.onTerminal != nil {
			p.onTerminal(rec)
		}
	}
}

func (p *Poller) updateGauges() {
	counts := make(map[task.Status]int)
	for _, rec := range p.reg.Snapshot() {
		counts[rec.Status]++
	}
	metrics.UpdateTaskGauges(counts)
}
