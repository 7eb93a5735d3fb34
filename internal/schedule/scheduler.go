package schedule

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/contagion-sim/internal/agents"
	"github.com/talgya/contagion-sim/internal/world"
)

// ExhaustionError names the agent and activity that could not be placed.
type ExhaustionError struct {
	Agent    agents.AgentID
	Class    string
	Activity string
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("no site with room for agent %d (%s) at activity %q", e.Agent, e.Class, e.Activity)
}

func (e *ExhaustionError) Unwrap() error {
	return ErrCapacityExhaustion
}

// Scheduler builds every agent's calendar of sites. It is a one-shot setup
// step; it is not safe for concurrent use.
type Scheduler struct {
	Calendar   world.Calendar
	Activities *world.Activities
	Population *agents.Population
	Rand       *rand.Rand
}

// Run applies constraints, sizes sites for peak demand, and binds each agent
// to one site per activity. Any error leaves no sites assigned.
func (s *Scheduler) Run(constraints []Constraint) (*world.Roster, error) {
	if err := s.Validate(constraints); err != nil {
		return nil, err
	}
	if err := s.Apply(constraints); err != nil {
		return nil, err
	}
	roster := s.Size()
	if err := s.Assign(roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// Validate checks that every constraint names a known class and activity
// and a slot inside the calendar.
func (s *Scheduler) Validate(constraints []Constraint) error {
	for _, c := range constraints {
		if _, ok := s.Population.Class(c.Class); !ok {
			return fmt.Errorf("constraint %s: class %q: %w", c, c.Class, ErrUnknownReference)
		}
		if _, ok := s.Activities.Lookup(c.Activity); !ok {
			return fmt.Errorf("constraint %s: activity %q: %w", c, c.Activity, ErrUnknownReference)
		}
		if !s.Calendar.Contains(c.Day, c.Hour) {
			return fmt.Errorf("constraint %s: slot outside %s: %w", c, s.Calendar, ErrUnknownReference)
		}
	}
	return nil
}

// Apply pins each constrained class member's cell to the named activity.
func (s *Scheduler) Apply(constraints []Constraint) error {
	for _, c := range constraints {
		act, _ := s.Activities.Lookup(c.Activity)
		members, _ := s.Population.Class(c.Class)
		for _, a := range members {
			if err := a.Constrain(act, c.Day, c.Hour); err != nil {
				return fmt.Errorf("apply %s: %w", c, err)
			}
		}
	}
	slog.Debug("constraints applied", "count", len(constraints))
	return nil
}

// PeakDemand returns the largest number of agents holding the activity in
// any single (day, hour) slot.
func (s *Scheduler) PeakDemand(act world.ActivityID) int {
	peak := 0
	for day := 0; day < s.Calendar.Days; day++ {
		for hour := 0; hour < s.Calendar.Hours; hour++ {
			n := 0
			for _, a := range s.Population.Agents {
				if a.Planned(day, hour) == act {
					n++
				}
			}
			if n > peak {
				peak = n
			}
		}
	}
	return peak
}

// Size creates ceil(peak / capacity) sites for every activity.
func (s *Scheduler) Size() *world.Roster {
	roster := world.NewRoster(s.Activities.Len())
	for _, act := range s.Activities.All() {
		peak := s.PeakDemand(act.ID)
		count := (peak + act.Capacity - 1) / act.Capacity
		if count == 0 {
			slog.Debug("activity unused, no sites", "activity", act.Label)
			continue
		}
		roster.Create(act, count)
		slog.Debug("sites created", "activity", act.Label, "peak", peak, "capacity", act.Capacity, "sites", count)
	}
	return roster
}

// Assign binds each agent to one site per activity it performs, so every
// recurrence of the activity happens at the same place.
func (s *Scheduler) Assign(roster *world.Roster) error {
	for _, act := range s.Activities.All() {
		candidates := append([]*world.Site(nil), roster.ForActivity(act.ID)...)
		for _, a := range s.Population.Agents {
			if !a.Uses(act.ID) {
				continue
			}
			site, rest, err := pick(candidates, s.Rand)
			candidates = rest
			if err != nil {
				return &ExhaustionError{Agent: a.ID, Class: a.Class, Activity: act.Label}
			}
			site.Occupied++
			a.Bind(act.ID, site.Ref)
		}
	}
	return nil
}

// pick draws candidates uniformly until one has room, dropping full ones.
func pick(candidates []*world.Site, rng *rand.Rand) (*world.Site, []*world.Site, error) {
	for len(candidates) > 0 {
		i := rng.Intn(len(candidates))
		site := candidates[i]
		if site.HasRoom() {
			return site, candidates, nil
		}
		candidates[i] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]
	}
	return nil, candidates, ErrCapacityExhaustion
}
