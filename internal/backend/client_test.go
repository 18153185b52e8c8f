package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		UserID:  "user-1",
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:9999"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.httpc.Timeout)
	assert.IsType(t, &JSONEncoder{}, c.enc)
}

func TestStartTask(t *testing.T) {
	var gotBody startTaskRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/tasks/start", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "abc-123"})
	})

	id, err := c.StartTask(context.Background(), "export_report", map[string]any{"region": "coastal"})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "export_report", gotBody.Kind)
	assert.Equal(t, "coastal", gotBody.Params["region"])
}

func TestStartTask_EmptyKind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.StartTask(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestStartTask_MissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := c.StartTask(context.Background(), "export_report", nil)
	assert.Error(t, err)
}

func TestGetTaskStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/abc-123/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"result": "done",
		})
	})

	status, err := c.GetTaskStatus(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, task.StatusSuccess, status.Status)
	assert.Equal(t, `"done"`, string(status.Result))
}

func TestGetTaskStatus_UnknownStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "exploded"})
	})

	_, err := c.GetTaskStatus(context.Background(), "abc-123")
	assert.Error(t, err)
}

func TestListAlerts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alerts", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "0", r.URL.Query().Get("skip"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 5, "title": "Flood watch", "severity": 4},
			{"id": 4, "title": "Heat advisory", "severity": 2},
		})
	})

	page, err := c.ListAlerts(context.Background(), 0, 20)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].ID)
	assert.Equal(t, "Flood watch", page[0].Title)
	assert.Equal(t, 4, page[0].Severity)
}

func TestMarkAlertRead(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/alerts/42/read", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	assert.NoError(t, c.MarkAlertRead(context.Background(), 42))
}

func TestMarkAlertRead_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": false})
	})

	assert.Error(t, c.MarkAlertRead(context.Background(), 42))
}

func TestMarkAllRead(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alerts/read-all", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("user_id"))
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})

	assert.NoError(t, c.MarkAllRead(context.Background()))
}

func TestGetUnreadCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alerts/unread-count", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]int{"unread_count": 12})
	})

	count, err := c.GetUnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		sessionExpired bool
		permanent      bool
	}{
		{"unauthorized", http.StatusUnauthorized, true, false},
		{"not found", http.StatusNotFound, false, true},
		{"unprocessable", http.StatusUnprocessableEntity, false, true},
		{"server error", http.StatusInternalServerError, false, false},
		{"bad gateway", http.StatusBadGateway, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			_, err := c.GetTaskStatus(context.Background(), "abc-123")
			require.Error(t, err)
			assert.Equal(t, tt.sessionExpired, httputil.IsSessionExpired(err))
			assert.Equal(t, tt.permanent, httputil.IsPermanent(err))
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	c, err := NewClient(Config{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.GetUnreadCount(context.Background())
	require.Error(t, err)
	assert.False(t, httputil.IsSessionExpired(err))
	assert.False(t, httputil.IsPermanent(err))
	assert.Equal(t, "transient", httputil.ErrorClass(err))
}
