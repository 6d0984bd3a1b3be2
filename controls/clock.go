package controls

import "time"

// Clock measures frame time for controls and animation.
type Clock struct {
	start time.Time
	last  time.Time
	dt    time.Duration
	now   func() time.Time
}

func NewClock() *Clock { return newClock(time.Now) }

func newClock(now func() time.Time) *Clock {
	t := now()
	return &Clock{start: t, last: t, now: now}
}

// Tick advances the clock and returns the time since the previous Tick.
func (c *Clock) Tick() time.Duration {
	t := c.now()
	c.dt = t.Sub(c.last)
	c.last = t
	return c.dt
}

func (c *Clock) Delta() time.Duration { return c.dt }

// Elapsed is the time from creation to the last Tick.
func (c *Clock) Elapsed() time.Duration { return c.last.Sub(c.start) }
