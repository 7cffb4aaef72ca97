package waveform

// Clock stamps waveform dumps with a monotonic timestamp.
//
// It is independent of the simulation tick counter: the initial dump before
// the first tick is stamped 0 and every later dump takes the next value.
// A Clock is owned by one Session and is not safe for concurrent use.
type Clock struct {
	next uint64
}

// NewClock creates a clock whose first timestamp is 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next timestamp and advances the clock.
func (c *Clock) Next() uint64 {
	t := c.next
	c.next++
	return t
}

// Current returns the timestamp the next call to Next will return.
func (c *Clock) Current() uint64 {
	return c.next
}
