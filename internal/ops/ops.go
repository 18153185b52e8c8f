// Package ops implements the operator HTTP surface of the daemon: local sync
// state snapshots, task and mark-read actions, and the archived history.
package ops

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/vigil/internal/history"
	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/syncer"
	"github.com/nadmax/vigil/internal/task"
)

type Ops struct {
	syncer  *syncer.Syncer
	archive *history.PostgresArchive
	mux     *http.ServeMux
}

type State struct {
	Tasks       []task.Record `json:"tasks"`
	Cursor      int64         `json:"cursor"`
	UnreadCount int           `json:"unread_count"`
	LastUpdated time.Time     `json:"last_updated"`
}

type StartTaskRequest struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params"`
}

type StartTaskResponse struct {
	TaskID string `json:"task_id"`
}

// NewOps builds the operator surface. The archive may be nil; history routes
// then answer 503.
func NewOps(s *syncer.Syncer, archive *history.PostgresArchive) *Ops {
	o := &Ops{
		syncer:  s,
		archive: archive,
		mux:     http.NewServeMux(),
	}

	o.setupRoutes()
	return o
}

func (o *Ops) setupRoutes() {
	o.mux.HandleFunc("/api/state", o.handleState)
	o.mux.HandleFunc("/api/tasks", o.handleTasks)
	o.mux.HandleFunc("/api/tasks/", o.handleTaskByID)
	o.mux.HandleFunc("/api/alerts/sync", o.handleAlertSync)
	o.mux.HandleFunc("/api/alerts/read-all", o.handleMarkAllRead)
	o.mux.HandleFunc("/api/alerts/", o.handleAlertByID)
	o.mux.HandleFunc("/api/history/notifications", o.handleNotifications)
	o.mux.HandleFunc("/api/history/stats", o.handleStats)
}

func (o *Ops) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mux.ServeHTTP(w, r)
}

func (o *Ops) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := State{
		Tasks:       o.syncer.Registry().Snapshot(),
		Cursor:      o.syncer.AlertWatermark(),
		UnreadCount: o.syncer.Unread().Count(),
		LastUpdated: time.Now(),
	}

	writeJSON(w, state, http.StatusOK)
}

func (o *Ops) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req StartTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		httputil.WriteJSONError(w, "Task kind is required", http.StatusBadRequest)
		return
	}

	id, err := o.syncer.StartTask(r.Context(), req.Kind, req.Params)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, StartTaskResponse{TaskID: id}, http.StatusCreated)
}

func (o *Ops) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if taskID == "" {
		httputil.WriteJSONError(w, "Task ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rec, ok := o.syncer.Registry().Get(taskID)
		if !ok {
			httputil.WriteJSONError(w, "Task not found", http.StatusNotFound)
			return
		}
		writeJSON(w, rec, http.StatusOK)
	case http.MethodDelete:
		o.syncer.Tasks().Remove(taskID)
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (o *Ops) handleAlertSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := o.syncer.SyncAlertsNow(r.Context()); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]int64{"cursor": o.syncer.AlertWatermark()}, http.StatusOK)
}

func (o *Ops) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := o.syncer.Unread().MarkAll(r.Context()); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]int{"unread_count": o.syncer.Unread().Count()}, http.StatusOK)
}

func (o *Ops) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/read") {
		httputil.WriteJSONError(w, "Not found", http.StatusNotFound)
		return
	}

	raw := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/alerts/"), "/read")
	alertID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteJSONError(w, "Invalid alert id", http.StatusBadRequest)
		return
	}

	if err := o.syncer.Unread().MarkRead(r.Context(), alertID); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]int{"unread_count": o.syncer.Unread().Count()}, http.StatusOK)
}

func (o *Ops) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if o.archive == nil {
		httputil.WriteJSONError(w, "History archive is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := o.archive.RecentNotifications(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows, http.StatusOK)
}

func (o *Ops) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if o.archive == nil {
		httputil.WriteJSONError(w, "History archive is not configured", http.StatusServiceUnavailable)
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			hours = n
		}
	}

	stats, err := o.archive.TaskOutcomeStats(r.Context(), hours)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httputil.WriteJSONError(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
