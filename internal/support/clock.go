package support

import "time"

// Clock abstracts time.Now so expiry-sensitive components can be tested at
// fixed instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// FixedClock is a test clock pinned to (and advanceable from) one instant.
type FixedClock struct {
	Instant time.Time
}

func (c *FixedClock) Now() time.Time { return c.Instant }

func (c *FixedClock) Advance(d time.Duration) { c.Instant = c.Instant.Add(d) }
