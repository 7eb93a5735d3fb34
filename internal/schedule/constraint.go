// Package schedule turns per-class constraints into a concrete,
// capacity-respecting assignment of agents to sites.
package schedule

import (
	"errors"
	"fmt"

	"github.com/talgya/contagion-sim/internal/agents"
)

var (
	// ErrConfigurationConflict: two constraints pin one agent's cell to
	// different activities.
	ErrConfigurationConflict = agents.ErrConfigurationConflict

	// ErrCapacityExhaustion: no site with room was left for an agent.
	ErrCapacityExhaustion = errors.New("capacity exhaustion")

	// ErrUnknownReference: a constraint names a class, activity, or slot
	// that does not exist.
	ErrUnknownReference = errors.New("unknown reference")
)

// Constraint pins every agent of a class to an activity at one slot.
type Constraint struct {
	Class    string `json:"class"`
	Activity string `json:"activity"`
	Day      int    `json:"day"`
	Hour     int    `json:"hour"`
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s -> %s @ day %d hour %d", c.Class, c.Activity, c.Day, c.Hour)
}

// Span is a half-open interval [From, To).
type Span struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// At returns the span holding a single value.
func At(v int) Span {
	return Span{From: v, To: v + 1}
}

// Range is a constraint over a block of days and hours.
type Range struct {
	Class    string
	Activity string
	Days     Span
	Hours    Span
}

// Expand flattens ranges into single-slot constraints, day-major.
func Expand(ranges []Range) []Constraint {
	var out []Constraint
	for _, r := range ranges {
		for day := r.Days.From; day < r.Days.To; day++ {
			for hour := r.Hours.From; hour < r.Hours.To; hour++ {
				out = append(out, Constraint{
					Class:    r.Class,
					Activity: r.Activity,
					Day:      day,
					Hour:     hour,
				})
			}
		}
	}
	return out
}
