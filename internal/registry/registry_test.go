package registry

import (
	"testing"

	"github.com/nadmax/vigil/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	r := New()

	assert.True(t, r.Register("t1", "generate_report"))

	rec, ok := r.Get("t1")
	require.True(t, ok)
	assert.Equal(t, task.StatusPending, rec.Status)
	assert.Equal(t, "generate_report", rec.Kind)
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()

	require.True(t, r.Register("t1", "export"))
	require.True(t, r.ApplyStatus("t1", task.StatusRunning, nil))

	assert.False(t, r.Register("t1", "export"))

	rec, ok := r.Get("t1")
	require.True(t, ok)
	assert.Equal(t, task.StatusRunning, rec.Status, "re-registering must not reset status")
}

func TestApplyStatus(t *testing.T) {
	r := New()
	require.True(t, r.Register("t1", "export"))

	assert.True(t, r.ApplyStatus("t1", task.StatusRunning, nil))

	rec, ok := r.Get("t1")
	require.True(t, ok)
	assert.Equal(t, task.StatusRunning, rec.Status)
	assert.False(t, rec.LastCheckedAt.IsZero())
}

func TestApplyStatus_AbsentID(t *testing.T) {
	r := New()

	assert.False(t, r.ApplyStatus("missing", task.StatusRunning, nil))
}

func TestApplyStatus_ResultStoredOnTerminal(t *testing.T) {
	r := New()
	require.True(t, r.Register("t1", "export"))

	require.True(t, r.ApplyStatus("t1", task.StatusRunning, []byte(`"partial"`)))
	rec, _ := r.Get("t1")
	assert.Nil(t, rec.Result, "result is only kept once the status is terminal")

	require.True(t, r.ApplyStatus("t1", task.StatusSuccess, []byte(`"ok"`)))
	rec, _ = r.Get("t1")
	assert.Equal(t, `"ok"`, string(rec.Result))
}

func TestApplyStatus_NeverRegressesFromTerminal(t *testing.T) {
	tests := []struct {
		name     string
		terminal task.Status
		late     task.Status
	}{
		{"success then pending", task.StatusSuccess, task.StatusPending},
		{"success then running", task.StatusSuccess, task.StatusRunning},
		{"failure then pending", task.StatusFailure, task.StatusPending},
		{"failure then running", task.StatusFailure, task.StatusRunning},
		{"success then failure", task.StatusSuccess, task.StatusFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			require.True(t, r.Register("t1", "export"))
			require.True(t, r.ApplyStatus("t1", tt.terminal, []byte(`"done"`)))

			assert.False(t, r.ApplyStatus("t1", tt.late, nil), "late response must be discarded")

			rec, _ := r.Get("t1")
			assert.Equal(t, tt.terminal, rec.Status)
			assert.Equal(t, `"done"`, string(rec.Result))
		})
	}
}

func TestRemoveAndClear(t *testing.T) {
	r := New()
	r.Register("t1", "a")
	r.Register("t2", "b")

	assert.False(t, r.IsEmpty())
	assert.Equal(t, 2, r.Len())

	r.Remove("t1")
	_, ok := r.Get("t1")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	r.Clear()
	assert.True(t, r.IsEmpty())
}

func TestActiveIDs(t *testing.T) {
	r := New()
	r.Register("b", "x")
	r.Register("a", "x")
	r.Register("c", "x")
	require.True(t, r.ApplyStatus("c", task.StatusSuccess, nil))

	assert.Equal(t, []string{"a", "b"}, r.ActiveIDs(), "terminal tasks are not polled")
}

func TestSnapshot_ReturnsCopies(t *testing.T) {
	r := New()
	r.Register("t1", "x")

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Status = task.StatusFailure

	rec, _ := r.Get("t1")
	assert.Equal(t, task.StatusPending, rec.Status, "snapshot mutation must not leak into the registry")
}
