package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorAdvance(t *testing.T) {
	c := NewCursor(0)

	assert.True(t, c.Advance(5))
	assert.Equal(t, int64(5), c.MaxSeenID())

	assert.True(t, c.Advance(7))
	assert.Equal(t, int64(7), c.MaxSeenID())
}

func TestCursorNeverDecreases(t *testing.T) {
	c := NewCursor(7)

	assert.False(t, c.Advance(3))
	assert.False(t, c.Advance(7))
	assert.Equal(t, int64(7), c.MaxSeenID())
}
