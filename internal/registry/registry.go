// Package registry implements the keyed store of tracked task records.
// The registry holds no behavior beyond state transitions; the poller in
// internal/poller drives all mutations from status responses.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/nadmax/vigil/internal/task"
)

type Registry struct {
	mu      sync.Mutex
	records map[string]*task.Record
}

func New() *Registry {
	return &Registry{
		records: make(map[string]*task.Record),
	}
}

// Register inserts a pending record for the given server-assigned id.
// Re-registering an existing id is a no-op and returns false.
func (r *Registry) Register(id, kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; ok {
		return false
	}
	r.records[id] = task.NewRecord(id, kind)
	return true
}

// ApplyStatus applies a poll response to an existing record. It returns false
// when the id is absent (already removed) or when the record is already in a
// terminal status; a late or duplicate response observing an earlier state is
// discarded rather than applied.
func (r *Registry) ApplyStatus(id string, status task.Status, result []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	if rec.Status.Terminal() {
		return false
	}

	rec.Status = status
	rec.LastCheckedAt = time.Now()
	if status.Terminal() {
		rec.Result = result
	}
	return true
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (task.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return task.Record{}, false
	}
	return *rec, true
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*task.Record)
}

func (r *Registry) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records) == 0
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ActiveIDs returns the ids of all non-terminal records, sorted for stable
// polling order. The slice is computed from live state on every call.
func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.records))
	for id, rec := range r.records {
		if !rec.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns copies of every record, sorted by creation time.
func (r *Registry) Snapshot() []task.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]task.Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
