package alerts

// Cursor is the watermark used to classify newly arrived alerts. Its value is
// monotonically non-decreasing: a fetch whose maximum id is lower than the
// watermark signals a feed discontinuity and never lowers it.
type Cursor struct {
	maxSeenID int64
}

func NewCursor(maxSeenID int64) *Cursor {
	return &Cursor{maxSeenID: maxSeenID}
}

func (c *Cursor) MaxSeenID() int64 {
	return c.maxSeenID
}

// Advance raises the watermark to id. Lower values are ignored and reported
// as false.
func (c *Cursor) Advance(id int64) bool {
	if id <= c.maxSeenID {
		return false
	}
	c.maxSeenID = id
	return true
}
