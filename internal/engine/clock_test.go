package engine

import (
	"testing"

	"github.com/talgya/contagion-sim/internal/world"
)

func TestClockWraps(t *testing.T) {
	cal := world.Calendar{Days: 2, Hours: 3}
	var c Clock
	want := [][2]int{{0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}, {0, 0}, {0, 1}}
	for i, w := range want {
		c.Advance(cal)
		if c.Day != w[0] || c.Hour != w[1] {
			t.Fatalf("step %d: got day %d hour %d, want %v", i+1, c.Day, c.Hour, w)
		}
		if c.Tick != uint64(i+1) {
			t.Fatalf("step %d: tick %d", i+1, c.Tick)
		}
		if ClockAt(cal, c.Tick) != c {
			t.Fatalf("step %d: ClockAt disagrees: %+v vs %+v", i+1, ClockAt(cal, c.Tick), c)
		}
	}
	if got := c.SimTime(cal); got != "Week 2 Day 0, Hour 1" {
		t.Fatalf("sim time = %q", got)
	}
}
