package world

import "fmt"

// ActivityID indexes an activity within its registry.
type ActivityID int

// Activity is a named demand type. Every site of an activity shares its
// capacity and transmission probability.
type Activity struct {
	ID           ActivityID `json:"id"`
	Label        string     `json:"label"`
	Capacity     int        `json:"capacity"`     // Max agents per site
	Transmission float64    `json:"transmission"` // 0.0–1.0, gate on contact transitions
}

// Activities is the ordered registry of activities for one run.
type Activities struct {
	list    []Activity
	byLabel map[string]ActivityID
}

// NewActivities creates an empty registry.
func NewActivities() *Activities {
	return &Activities{byLabel: make(map[string]ActivityID)}
}

// Add registers an activity and returns its ID.
func (a *Activities) Add(label string, capacity int, transmission float64) (ActivityID, error) {
	if label == "" {
		return 0, fmt.Errorf("activity label is required")
	}
	if _, ok := a.byLabel[label]; ok {
		return 0, fmt.Errorf("duplicate activity %q", label)
	}
	if capacity < 1 {
		return 0, fmt.Errorf("activity %q: capacity must be positive, got %d", label, capacity)
	}
	if transmission < 0 || transmission > 1 {
		return 0, fmt.Errorf("activity %q: transmission %.3f outside [0,1]", label, transmission)
	}

	id := ActivityID(len(a.list))
	a.list = append(a.list, Activity{
		ID:           id,
		Label:        label,
		Capacity:     capacity,
		Transmission: transmission,
	})
	a.byLabel[label] = id
	return id, nil
}

// Lookup resolves a label to its ID.
func (a *Activities) Lookup(label string) (ActivityID, bool) {
	id, ok := a.byLabel[label]
	return id, ok
}

// Get returns the activity with the given ID.
func (a *Activities) Get(id ActivityID) Activity {
	return a.list[id]
}

// All returns activities in registration order.
func (a *Activities) All() []Activity {
	return a.list
}

// Len returns the number of registered activities.
func (a *Activities) Len() int {
	return len(a.list)
}
