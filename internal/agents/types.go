// Package agents provides the agent data model: class membership, the
// weekly calendar of activities and sites, and epidemiological state.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/contagion-sim/internal/world"
)

// ErrConfigurationConflict is returned when two constraints pin the same
// calendar cell of one agent to different activities.
var ErrConfigurationConflict = errors.New("configuration conflict")

// AgentID is a unique identifier for an agent.
type AgentID uint64

// ConflictError details a ConfigurationConflict.
type ConflictError struct {
	Agent    AgentID
	Class    string
	Day      int
	Hour     int
	Existing world.ActivityID
	Incoming world.ActivityID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting constraints on agent %d (%s) at day %d hour %d: activity %d vs %d",
		e.Agent, e.Class, e.Day, e.Hour, e.Existing, e.Incoming)
}

func (e *ConflictError) Unwrap() error {
	return ErrConfigurationConflict
}

// Agent is one member of the population.
type Agent struct {
	ID      AgentID          `json:"id"`
	Class   string           `json:"class"`
	Default world.ActivityID `json:"default"`

	// Schedule
	plan     [][]world.ActivityID // Activity per (day, hour), before site binding
	pinned   [][]bool             // Cells set by a constraint
	calendar [][]world.SiteRef    // Site per (day, hour), filled by the scheduler

	// Epidemiology, as indexes into the contagion model.
	State       int `json:"state"`
	Next        int `json:"next"`
	SinceChange int `json:"since_change"` // Ticks since the last state change
}

// New creates an agent whose whole calendar holds its default activity.
func New(id AgentID, class string, def world.ActivityID, cal world.Calendar, initial int) *Agent {
	a := &Agent{
		ID:       id,
		Class:    class,
		Default:  def,
		plan:     make([][]world.ActivityID, cal.Days),
		pinned:   make([][]bool, cal.Days),
		calendar: make([][]world.SiteRef, cal.Days),
		State:    initial,
		Next:     initial,
	}
	for d := 0; d < cal.Days; d++ {
		a.plan[d] = make([]world.ActivityID, cal.Hours)
		a.pinned[d] = make([]bool, cal.Hours)
		a.calendar[d] = make([]world.SiteRef, cal.Hours)
		for h := 0; h < cal.Hours; h++ {
			a.plan[d][h] = def
			a.calendar[d][h] = world.NoSite
		}
	}
	return a
}

// Constrain pins the (day, hour) cell to an activity. Pinning a cell twice to
// the same activity is a no-op; pinning it to a different one is a conflict.
func (a *Agent) Constrain(act world.ActivityID, day, hour int) error {
	if a.pinned[day][hour] && a.plan[day][hour] != act {
		return &ConflictError{
			Agent:    a.ID,
			Class:    a.Class,
			Day:      day,
			Hour:     hour,
			Existing: a.plan[day][hour],
			Incoming: act,
		}
	}
	a.plan[day][hour] = act
	a.pinned[day][hour] = true
	return nil
}

// Planned returns the activity held in the (day, hour) cell.
func (a *Agent) Planned(day, hour int) world.ActivityID {
	return a.plan[day][hour]
}

// Uses returns true if the activity appears anywhere in the calendar.
func (a *Agent) Uses(act world.ActivityID) bool {
	for _, row := range a.plan {
		for _, cell := range row {
			if cell == act {
				return true
			}
		}
	}
	return false
}

// Activities returns the distinct activities in the calendar, in ID order.
func (a *Agent) Activities() []world.ActivityID {
	seen := make(map[world.ActivityID]bool)
	for _, row := range a.plan {
		for _, cell := range row {
			seen[cell] = true
		}
	}
	out := make([]world.ActivityID, 0, len(seen))
	for id := world.ActivityID(0); len(out) < len(seen); id++ {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// Bind points every cell holding the activity at one site. Returns the
// number of cells rewritten.
func (a *Agent) Bind(act world.ActivityID, ref world.SiteRef) int {
	n := 0
	for d, row := range a.plan {
		for h, cell := range row {
			if cell == act {
				a.calendar[d][h] = ref
				n++
			}
		}
	}
	return n
}

// Site returns the site the agent attends at (day, hour).
func (a *Agent) Site(day, hour int) world.SiteRef {
	return a.calendar[day][hour]
}

// Scheduled returns true once every calendar cell references a site.
func (a *Agent) Scheduled() bool {
	for _, row := range a.calendar {
		for _, ref := range row {
			if !ref.Valid() {
				return false
			}
		}
	}
	return true
}

// Commit applies the pending state. Returns true if the state changed.
func (a *Agent) Commit() bool {
	if a.Next == a.State {
		return false
	}
	a.State = a.Next
	a.SinceChange = 0
	return true
}

// Redirect sets the pending state from outside the dynamics (seeding).
func (a *Agent) Redirect(state int) {
	a.Next = state
	a.SinceChange = 0
}
