package unread

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nadmax/vigil/internal/alerts"
	"github.com/nadmax/vigil/internal/httputil"
	"github.com/nadmax/vigil/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu         sync.Mutex
	count      int
	list       []alerts.Alert
	countCalls int
	listCalls  int
	countErr   error
	markErr    error
}

func (c *fakeClient) GetUnreadCount(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.countCalls++
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.count, nil
}

func (c *fakeClient) ListAlerts(ctx context.Context, skip, limit int) ([]alerts.Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	out := make([]alerts.Alert, len(c.list))
	copy(out, c.list)
	return out, nil
}

func (c *fakeClient) MarkAlertRead(ctx context.Context, alertID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markErr != nil {
		return c.markErr
	}
	for i := range c.list {
		if c.list[i].ID == alertID && !c.list[i].IsRead {
			c.list[i].IsRead = true
			c.count--
		}
	}
	return nil
}

func (c *fakeClient) MarkAllRead(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markErr != nil {
		return c.markErr
	}
	for i := range c.list {
		c.list[i].IsRead = true
	}
	c.count = 0
	return nil
}

type memCheckpoint struct {
	mu    sync.Mutex
	count int
	saved int
}

func (m *memCheckpoint) LoadUnread(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, nil
}

func (m *memCheckpoint) SaveUnread(ctx context.Context, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = count
	m.saved++
	return nil
}

func newTestSync(t *testing.T, client *fakeClient) *Sync {
	t.Helper()
	s := New(Config{
		Client:   client,
		Interval: time.Hour,
		Logger:   logging.NopLogger{},
	})
	t.Cleanup(s.Close)
	return s
}

func TestRefreshCount(t *testing.T) {
	client := &fakeClient{count: 7}
	s := newTestSync(t, client)

	require.NoError(t, s.RefreshCount(context.Background()))
	assert.Equal(t, 7, s.Count())
}

func TestRefreshCount_ErrorKeepsLastValue(t *testing.T) {
	client := &fakeClient{count: 7}
	s := newTestSync(t, client)
	require.NoError(t, s.RefreshCount(context.Background()))

	client.mu.Lock()
	client.countErr = errors.New("connection refused")
	client.mu.Unlock()

	assert.Error(t, s.RefreshCount(context.Background()))
	assert.Equal(t, 7, s.Count(), "a failed poll keeps the last reconciled value")
}

func TestAlerts_LoadedLazily(t *testing.T) {
	client := &fakeClient{list: []alerts.Alert{{ID: 1, Title: "Flood watch"}}}
	s := newTestSync(t, client)

	assert.Equal(t, 0, client.listCalls, "nothing is fetched before first use")

	list, err := s.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, client.listCalls)

	_, err = s.Alerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.listCalls, "subsequent reads hit the cached list")
}

func TestMarkRead_OptimisticUpdate(t *testing.T) {
	client := &fakeClient{
		count: 2,
		list: []alerts.Alert{
			{ID: 1, Title: "Flood watch"},
			{ID: 2, Title: "Heat advisory"},
		},
	}
	s := newTestSync(t, client)
	require.NoError(t, s.RefreshCount(context.Background()))
	_, err := s.Alerts(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.MarkRead(context.Background(), 1))

	assert.Equal(t, 1, s.Count(), "the counter drops by exactly one")

	list, err := s.Alerts(context.Background())
	require.NoError(t, err)
	assert.True(t, list[0].IsRead)
	assert.False(t, list[1].IsRead)
}

func TestMarkRead_ReconcilesImmediately(t *testing.T) {
	client := &fakeClient{count: 2, list: []alerts.Alert{{ID: 1}}}
	s := newTestSync(t, client)
	_, err := s.Alerts(context.Background())
	require.NoError(t, err)

	countBefore := client.countCalls
	listBefore := client.listCalls
	require.NoError(t, s.MarkRead(context.Background(), 1))

	assert.Equal(t, countBefore+1, client.countCalls, "the counter is re-fetched without waiting for a tick")
	assert.Equal(t, listBefore+1, client.listCalls, "the loaded list is re-fetched without waiting for a tick")
}

func TestMarkRead_ListNotLoadedSkipsListRefresh(t *testing.T) {
	client := &fakeClient{count: 2, list: []alerts.Alert{{ID: 1}}}
	s := newTestSync(t, client)

	require.NoError(t, s.MarkRead(context.Background(), 1))

	assert.Equal(t, 0, client.listCalls, "an unloaded list is not fetched just to reconcile")
	assert.Equal(t, 1, client.countCalls)
	assert.Equal(t, 1, s.Count(), "the counter still reconciles against the server")
}

func TestMarkRead_AlreadyReadDoesNotDecrement(t *testing.T) {
	client := &fakeClient{count: 1, list: []alerts.Alert{{ID: 1, IsRead: true}, {ID: 2}}}
	s := newTestSync(t, client)
	require.NoError(t, s.RefreshCount(context.Background()))
	_, err := s.Alerts(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.MarkRead(context.Background(), 1))
	assert.Equal(t, 1, s.Count(), "re-marking a read alert leaves the counter alone")
}

func TestMarkAll(t *testing.T) {
	client := &fakeClient{
		count: 3,
		list:  []alerts.Alert{{ID: 1}, {ID: 2}, {ID: 3}},
	}
	s := newTestSync(t, client)
	require.NoError(t, s.RefreshCount(context.Background()))
	_, err := s.Alerts(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.MarkAll(context.Background()))

	assert.Equal(t, 0, s.Count())
	list, err := s.Alerts(context.Background())
	require.NoError(t, err)
	for _, a := range list {
		assert.True(t, a.IsRead)
	}
}

func TestMarkRead_ServerErrorLeavesState(t *testing.T) {
	client := &fakeClient{
		count:   1,
		list:    []alerts.Alert{{ID: 1}},
		markErr: errors.New("connection refused"),
	}
	s := newTestSync(t, client)
	require.NoError(t, s.RefreshCount(context.Background()))
	_, err := s.Alerts(context.Background())
	require.NoError(t, err)

	assert.Error(t, s.MarkRead(context.Background(), 1))

	assert.Equal(t, 1, s.Count(), "a rejected mark never applies the optimistic update")
	list, err := s.Alerts(context.Background())
	require.NoError(t, err)
	assert.False(t, list[0].IsRead)
}

func TestSessionExpiredHaltsSync(t *testing.T) {
	expired := 0
	client := &fakeClient{
		countErr: httputil.ClassifyStatus(http.StatusUnauthorized, "/api/alerts/unread-count", ""),
	}
	s := New(Config{
		Client:           client,
		Interval:         time.Hour,
		Logger:           logging.NopLogger{},
		OnSessionExpired: func() { expired++ },
	})
	defer s.Close()

	assert.Error(t, s.RefreshCount(context.Background()))
	assert.Equal(t, 1, expired)

	require.NoError(t, s.RefreshCount(context.Background()), "a halted sync becomes a no-op")
	assert.Equal(t, 1, expired)
}

func TestCheckpoint_RestoresAndSaves(t *testing.T) {
	cp := &memCheckpoint{count: 4}
	client := &fakeClient{count: 9}
	s := New(Config{
		Client:     client,
		Interval:   time.Hour,
		Checkpoint: cp,
		Logger:     logging.NopLogger{},
	})
	defer s.Close()

	s.Start()
	assert.Equal(t, 4, s.Count(), "the checkpointed badge shows before the first poll")

	require.NoError(t, s.RefreshCount(context.Background()))
	assert.Equal(t, 9, s.Count())

	cp.mu.Lock()
	defer cp.mu.Unlock()
	assert.Equal(t, 9, cp.count)
	assert.Equal(t, 1, cp.saved)
}

func TestStartIdempotent(t *testing.T) {
	client := &fakeClient{}
	s := newTestSync(t, client)

	s.Start()
	s.mu.Lock()
	first := s.stopCh
	s.mu.Unlock()

	s.Start()
	s.mu.Lock()
	second := s.stopCh
	s.mu.Unlock()

	assert.Equal(t, first, second)
}

func TestPeriodicPoll(t *testing.T) {
	client := &fakeClient{count: 3}
	s := New(Config{
		Client:   client,
		Interval: 10 * time.Millisecond,
		Logger:   logging.NopLogger{},
	})

	s.Start()
	require.Eventually(t, func() bool {
		return s.Count() == 3
	}, time.Second, 5*time.Millisecond)

	s.Close()
	time.Sleep(20 * time.Millisecond)
	client.mu.Lock()
	calls := client.countCalls
	client.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, calls, client.countCalls, "no polls after Close")
}
