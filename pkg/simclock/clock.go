// Package simclock maps integer tick counts to simulated wall-clock
// time. It is read-only to every component except the tick scheduler,
// which is the only caller allowed to Advance it.
package simclock

import "fmt"

// TimeDelta is a non-negative count of simulated seconds.
type TimeDelta uint64

// Add returns d+other, saturating at the maximum representable value.
func (d TimeDelta) Add(other TimeDelta) TimeDelta {
	sum := d + other
	if sum < d { // overflow
		return TimeDelta(^uint64(0))
	}
	return sum
}

// Sub returns d-other, saturating at zero.
func (d TimeDelta) Sub(other TimeDelta) TimeDelta {
	if other >= d {
		return 0
	}
	return d - other
}

func (d TimeDelta) String() string {
	return fmt.Sprintf("%ds", uint64(d))
}

// DateTime is a TimeDelta offset from simulation start.
type DateTime struct {
	offset TimeDelta
}

// NewDateTime builds a DateTime from a second offset.
func NewDateTime(seconds uint64) DateTime {
	return DateTime{offset: TimeDelta(seconds)}
}

// Seconds returns the raw offset in seconds since simulation start.
func (t DateTime) Seconds() uint64 { return uint64(t.offset) }

// Before reports whether t happens strictly before other.
func (t DateTime) Before(other DateTime) bool { return t.offset < other.offset }

// After reports whether t happens strictly after other.
func (t DateTime) After(other DateTime) bool { return t.offset > other.offset }

// Equal reports whether t and other denote the same instant.
func (t DateTime) Equal(other DateTime) bool { return t.offset == other.offset }

// AtOrBefore reports t <= other.
func (t DateTime) AtOrBefore(other DateTime) bool { return !t.After(other) }

// AtOrAfter reports t >= other.
func (t DateTime) AtOrAfter(other DateTime) bool { return !t.Before(other) }

// Plus returns t advanced by delta, saturating.
func (t DateTime) Plus(delta TimeDelta) DateTime {
	return DateTime{offset: t.offset.Add(delta)}
}

// Minus returns t set back by delta, saturating at the start of time.
func (t DateTime) Minus(delta TimeDelta) DateTime {
	return DateTime{offset: t.offset.Sub(delta)}
}

// Diff returns the non-negative TimeDelta between t and an earlier
// instant other. If other is after t, the result is zero.
func (t DateTime) Diff(other DateTime) TimeDelta {
	return t.offset.Sub(other.offset)
}

func (t DateTime) String() string {
	return fmt.Sprintf("t+%ds", t.offset)
}

// Clock maps ticks to simulated time. It must be advanced exactly
// once per tick, before any agent logic runs (spec §4.9 phase 1).
type Clock struct {
	secondsPerTick uint64
	tick           uint64
}

// New constructs a Clock. secondsPerTick must be positive.
func New(secondsPerTick uint64) (*Clock, error) {
	if secondsPerTick == 0 {
		return nil, fmt.Errorf("seconds_per_tick must be positive")
	}
	return &Clock{secondsPerTick: secondsPerTick}, nil
}

// Tick returns the current tick count.
func (c *Clock) Tick() uint64 { return c.tick }

// Now returns the current simulated DateTime.
func (c *Clock) Now() DateTime {
	return NewDateTime(c.tick * c.secondsPerTick)
}

// SecondsPerTick returns the configured tick duration.
func (c *Clock) SecondsPerTick() uint64 { return c.secondsPerTick }

// Advance moves the clock forward by one tick.
func (c *Clock) Advance() {
	c.tick++
}

// TicksFor returns the number of ticks needed to cover delta seconds,
// rounded up.
func (c *Clock) TicksFor(delta TimeDelta) uint64 {
	d := uint64(delta)
	if d == 0 {
		return 0
	}
	return (d + c.secondsPerTick - 1) / c.secondsPerTick
}
