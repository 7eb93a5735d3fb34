package engine

import (
	"fmt"

	"github.com/talgya/contagion-sim/internal/world"
)

// Clock is the cyclic (day, hour) position plus a monotonic tick counter.
type Clock struct {
	Day  int    `json:"day"`
	Hour int    `json:"hour"`
	Tick uint64 `json:"tick"` // Never wraps
}

// Advance moves the clock one hour-slot forward, wrapping hours into days
// and days back to 0.
func (c *Clock) Advance(cal world.Calendar) {
	c.Tick++
	c.Hour++
	if c.Hour == cal.Hours {
		c.Hour = 0
		c.Day++
	}
	if c.Day == cal.Days {
		c.Day = 0
	}
}

// ClockAt returns the clock position after the given number of ticks.
func ClockAt(cal world.Calendar, tick uint64) Clock {
	slot := tick % uint64(cal.Slots())
	return Clock{
		Day:  int(slot) / cal.Hours,
		Hour: int(slot) % cal.Hours,
		Tick: tick,
	}
}

// SimTime returns a human-readable time, e.g. "Week 2 Day 3, Hour 1".
func (c Clock) SimTime(cal world.Calendar) string {
	week := c.Tick/uint64(cal.Slots()) + 1
	return fmt.Sprintf("Week %d Day %d, Hour %d", week, c.Day, c.Hour)
}
