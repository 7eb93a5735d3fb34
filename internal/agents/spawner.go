// Agent spawning: creates the population class by class.
package agents

import (
	"github.com/talgya/contagion-sim/internal/world"
)

// Spawner creates agents with monotonically increasing IDs.
type Spawner struct {
	cal     world.Calendar
	initial int
	nextID  AgentID
}

// NewSpawner creates a spawner for a calendar. Every agent starts in the
// given initial state index.
func NewSpawner(cal world.Calendar, initial int) *Spawner {
	return &Spawner{cal: cal, initial: initial}
}

// SpawnClass creates count agents of a class with a default activity.
func (s *Spawner) SpawnClass(class string, def world.ActivityID, count int) []*Agent {
	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		agents = append(agents, New(s.nextID, class, def, s.cal, s.initial))
		s.nextID++
	}
	return agents
}

// Population holds every agent in ID order plus a class index.
type Population struct {
	Agents  []*Agent
	byID    map[AgentID]*Agent
	classes map[string][]*Agent
	order   []string
}

// NewPopulation creates an empty population.
func NewPopulation() *Population {
	return &Population{
		byID:    make(map[AgentID]*Agent),
		classes: make(map[string][]*Agent),
	}
}

// Add appends a batch of agents of one class.
func (p *Population) Add(class string, batch []*Agent) {
	if _, ok := p.classes[class]; !ok {
		p.order = append(p.order, class)
	}
	p.classes[class] = append(p.classes[class], batch...)
	p.Agents = append(p.Agents, batch...)
	for _, a := range batch {
		p.byID[a.ID] = a
	}
}

// Get returns the agent with the given ID, or nil.
func (p *Population) Get(id AgentID) *Agent {
	return p.byID[id]
}

// Class returns the members of a class, and whether the class exists.
func (p *Population) Class(name string) ([]*Agent, bool) {
	members, ok := p.classes[name]
	return members, ok
}

// Classes returns class names in the order they were added.
func (p *Population) Classes() []string {
	return p.order
}

// Len returns the number of agents.
func (p *Population) Len() int {
	return len(p.Agents)
}
