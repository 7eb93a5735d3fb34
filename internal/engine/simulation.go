// Simulation ties together the population, the site roster, and the
// contagion model, and runs the two-phase step each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/contagion-sim/internal/agents"
	"github.com/talgya/contagion-sim/internal/contagion"
	"github.com/talgya/contagion-sim/internal/entropy"
	"github.com/talgya/contagion-sim/internal/schedule"
	"github.com/talgya/contagion-sim/internal/world"
)

// Setup errors, re-exported for callers that only import engine.
var (
	ErrConfigurationConflict = schedule.ErrConfigurationConflict
	ErrCapacityExhaustion    = schedule.ErrCapacityExhaustion
	ErrUnknownReference      = schedule.ErrUnknownReference
	ErrSeedOverflow          = errors.New("seed count exceeds population")
)

// Class is a group of agents sharing a default activity.
type Class struct {
	Name    string
	Default string
	Count   int
}

// Setup is everything needed to build a simulation.
type Setup struct {
	Name        string
	Calendar    world.Calendar
	Activities  *world.Activities
	Model       *contagion.Model
	Classes     []Class
	Constraints []schedule.Constraint
	Seed        int64
	Workers     int // Goroutines per phase; 0 = GOMAXPROCS
}

// Event is a notable occurrence in the run.
type Event struct {
	Tick        uint64         `json:"tick" db:"tick"`
	Description string         `json:"description" db:"description"`
	Category    string         `json:"category" db:"category"` // "infection", "seed"
	Meta        map[string]any `json:"meta,omitempty" db:"-"`
}

// Simulation holds the complete run state. Methods are safe for concurrent
// use; Step holds the write lock for the whole tick.
type Simulation struct {
	mu sync.RWMutex

	RunID      string
	Name       string
	Calendar   world.Calendar
	Activities *world.Activities
	Model      *contagion.Model
	Roster     *world.Roster
	Population *agents.Population
	Entropy    *entropy.Source
	Clock      Clock
	Workers    int

	History []contagion.Census // Census observed at the start of each tick
	Events  []Event            // Recent events
	pending []seedOrder        // Seeding scheduled for future ticks
}

type seedOrder struct {
	Tick  uint64
	Count int
	State contagion.StateID
}

// NewSimulation spawns the population and runs the scheduler. Any setup
// error is returned before a single tick can run.
func NewSimulation(setup Setup) (*Simulation, error) {
	if setup.Model == nil || setup.Activities == nil {
		return nil, fmt.Errorf("setup needs a contagion model and activities")
	}
	workers := setup.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pop := agents.NewPopulation()
	spawner := agents.NewSpawner(setup.Calendar, setup.Model.Initial())
	for _, c := range setup.Classes {
		if _, dup := pop.Class(c.Name); dup {
			return nil, fmt.Errorf("duplicate class %q", c.Name)
		}
		def, ok := setup.Activities.Lookup(c.Default)
		if !ok {
			return nil, fmt.Errorf("class %q default activity %q: %w", c.Name, c.Default, ErrUnknownReference)
		}
		if c.Count < 0 {
			return nil, fmt.Errorf("class %q: negative population %d", c.Name, c.Count)
		}
		pop.Add(c.Name, spawner.SpawnClass(c.Name, def, c.Count))
	}

	src := entropy.New(setup.Seed)
	sched := &schedule.Scheduler{
		Calendar:   setup.Calendar,
		Activities: setup.Activities,
		Population: pop,
		Rand:       src.Rand(),
	}
	roster, err := sched.Run(setup.Constraints)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	sim := &Simulation{
		RunID:      uuid.NewString(),
		Name:       setup.Name,
		Calendar:   setup.Calendar,
		Activities: setup.Activities,
		Model:      setup.Model,
		Roster:     roster,
		Population: pop,
		Entropy:    src,
		Workers:    workers,
	}

	slog.Info("simulation ready",
		"run", sim.RunID,
		"agents", pop.Len(),
		"sites", roster.Len(),
		"calendar", setup.Calendar.String(),
		"seed", setup.Seed,
	)
	return sim, nil
}

// CurrentTick returns the tick the next Step will run.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Clock.Tick
}

// Now returns the current clock.
func (s *Simulation) Now() Clock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Clock
}

// Census counts agents per state as of the current tick boundary. Pending
// transitions are not included until they commit.
func (s *Simulation) Census() contagion.Census {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.census()
}

func (s *Simulation) census() contagion.Census {
	states := make([]int, len(s.Population.Agents))
	for i, a := range s.Population.Agents {
		states[i] = a.State
	}
	return s.Model.NewCensus(s.Clock.Tick, states)
}

// CensusHistory returns a copy of every census recorded so far.
func (s *Simulation) CensusHistory() []contagion.Census {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contagion.Census(nil), s.History...)
}

// RecentEvents returns up to limit of the most recent events, newest last.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.Events) {
		limit = len(s.Events)
	}
	return append([]Event(nil), s.Events[len(s.Events)-limit:]...)
}

// DrainEvents returns and forgets all buffered events.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.Events
	s.Events = nil
	return out
}

// maxEvents bounds the in-memory event buffer; older events are dropped
// unless a save drained them first.
const maxEvents = 1000

func (s *Simulation) emit(e Event) {
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// AgentSnapshot is a read-only view of one agent.
type AgentSnapshot struct {
	ID          uint64     `json:"id"`
	Class       string     `json:"class"`
	State       string     `json:"state"`
	Next        string     `json:"next"`
	SinceChange int        `json:"since_change"`
	Activities  []string   `json:"activities"`
	Calendar    [][]string `json:"calendar"` // [day][hour] → "label/site"
}

// Agent returns a snapshot of the agent at position i in the population.
func (s *Simulation) Agent(i int) (AgentSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.Population.Agents) {
		return AgentSnapshot{}, false
	}
	a := s.Population.Agents[i]
	snap := AgentSnapshot{
		ID:          uint64(a.ID),
		Class:       a.Class,
		State:       string(s.Model.State(a.State).ID),
		Next:        string(s.Model.State(a.Next).ID),
		SinceChange: a.SinceChange,
		Calendar:    make([][]string, s.Calendar.Days),
	}
	for _, act := range a.Activities() {
		snap.Activities = append(snap.Activities, s.Activities.Get(act).Label)
	}
	for day := 0; day < s.Calendar.Days; day++ {
		snap.Calendar[day] = make([]string, s.Calendar.Hours)
		for hour := 0; hour < s.Calendar.Hours; hour++ {
			ref := a.Site(day, hour)
			snap.Calendar[day][hour] = fmt.Sprintf("%s/%d", s.Activities.Get(ref.Activity).Label, ref.Index)
		}
	}
	return snap, true
}
