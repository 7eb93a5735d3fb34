package world

import (
	"fmt"
	"slices"
	"sync"
)

// SiteRef addresses a site in the roster arena by activity and local index.
type SiteRef struct {
	Activity ActivityID `json:"activity"`
	Index    int        `json:"index"`
}

// NoSite marks a calendar cell that has not been bound yet.
var NoSite = SiteRef{Activity: -1, Index: -1}

// Valid returns true if the ref points at a real site.
func (r SiteRef) Valid() bool {
	return r.Activity >= 0 && r.Index >= 0
}

// Site is one physical instance of an activity.
type Site struct {
	Ref          SiteRef `json:"ref"`
	Label        string  `json:"label"`
	Capacity     int     `json:"capacity"`
	Transmission float64 `json:"transmission"`
	Occupied     int     `json:"occupied"` // Agents permanently favoring this site

	// Agents present this tick. Rebuilt every tick.
	mu      sync.Mutex
	current []uint64
}

// Enter registers an agent as present this tick. Safe for concurrent use.
func (s *Site) Enter(agentID uint64) {
	s.mu.Lock()
	s.current = append(s.current, agentID)
	s.mu.Unlock()
}

// Present returns the agents registered this tick, sorted by ID.
// Only call after every agent has entered.
func (s *Site) Present() []uint64 {
	return s.current
}

// Clear empties the occupant set.
func (s *Site) Clear() {
	s.current = s.current[:0]
}

// settle orders occupants so that readers see a stable snapshot.
func (s *Site) settle() {
	slices.Sort(s.current)
}

// HasRoom returns true if another agent can favor this site.
func (s *Site) HasRoom() bool {
	return s.Occupied < s.Capacity
}

func (s *Site) String() string {
	return fmt.Sprintf("%s site %d", s.Label, s.Ref.Index)
}

// Roster is the arena of every site in a run, grouped by activity.
type Roster struct {
	byActivity [][]*Site
	count      int
}

// NewRoster creates an empty roster for n activities.
func NewRoster(n int) *Roster {
	return &Roster{byActivity: make([][]*Site, n)}
}

// Create appends count sites for an activity, numbered from 0.
func (r *Roster) Create(act Activity, count int) []*Site {
	for i := 0; i < count; i++ {
		site := &Site{
			Ref:          SiteRef{Activity: act.ID, Index: len(r.byActivity[act.ID])},
			Label:        act.Label,
			Capacity:     act.Capacity,
			Transmission: act.Transmission,
		}
		r.byActivity[act.ID] = append(r.byActivity[act.ID], site)
		r.count++
	}
	return r.byActivity[act.ID]
}

// Get returns the site for a ref, or nil if it does not exist.
func (r *Roster) Get(ref SiteRef) *Site {
	if ref.Activity < 0 || int(ref.Activity) >= len(r.byActivity) {
		return nil
	}
	sites := r.byActivity[ref.Activity]
	if ref.Index < 0 || ref.Index >= len(sites) {
		return nil
	}
	return sites[ref.Index]
}

// ForActivity returns the sites of one activity.
func (r *Roster) ForActivity(id ActivityID) []*Site {
	if id < 0 || int(id) >= len(r.byActivity) {
		return nil
	}
	return r.byActivity[id]
}

// All returns every site, activity by activity.
func (r *Roster) All() []*Site {
	out := make([]*Site, 0, r.count)
	for _, sites := range r.byActivity {
		out = append(out, sites...)
	}
	return out
}

// Len returns the total number of sites.
func (r *Roster) Len() int {
	return r.count
}

// ClearOccupants empties every site's occupant set (tick start).
func (r *Roster) ClearOccupants() {
	for _, sites := range r.byActivity {
		for _, s := range sites {
			s.Clear()
		}
	}
}

// SettleOccupants sorts every occupant set once all agents have entered.
func (r *Roster) SettleOccupants() {
	for _, sites := range r.byActivity {
		for _, s := range sites {
			s.settle()
		}
	}
}
