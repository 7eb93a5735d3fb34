// Package contagion describes the compartment model: named epidemiological
// states, contact-triggered transitions, and timed evolutions.
package contagion

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrUnknownState is returned when a rule or request names a state that is
// not part of the model.
var ErrUnknownState = errors.New("unknown state")

// StateID names a compartment, e.g. "S", "I", "R".
type StateID string

// Transition moves an agent to Target when a co-located neighbor is in
// Trigger, with the given probability.
type Transition struct {
	Trigger     StateID `json:"trigger" yaml:"trigger"`
	Target      StateID `json:"target" yaml:"target"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Evolution moves an agent to Target after Duration ticks in the state.
type Evolution struct {
	Target   StateID `json:"target" yaml:"target"`
	Duration int     `json:"duration" yaml:"duration"`
}

// Kind tags how a state behaves during a tick.
type Kind uint8

const (
	KindTerminal Kind = iota // No outgoing rules, a fixed point
	KindTimer                // Unconditional transition after a duration
	KindContact              // Probabilistic transitions gated by neighbors
)

func (k Kind) String() string {
	switch k {
	case KindTimer:
		return "timer"
	case KindContact:
		return "contact"
	default:
		return "terminal"
	}
}

// State is one compartment of the model.
type State struct {
	ID          StateID      `json:"id"`
	Transitions []Transition `json:"transitions,omitempty"`
	Evolution   *Evolution   `json:"evolution,omitempty"`
}

// Kind returns the state's behavior. Evolution takes precedence over
// transitions when both are set.
func (s State) Kind() Kind {
	switch {
	case s.Evolution != nil:
		return KindTimer
	case len(s.Transitions) > 0:
		return KindContact
	default:
		return KindTerminal
	}
}

// Model is the ordered set of states. The first state is where every agent
// starts.
type Model struct {
	states []State
	index  map[StateID]int

	// Resolved rule targets, parallel to states.
	evolveTo []int
	triggers [][]rule
}

// rule is a transition with trigger and target resolved to state indexes.
type rule struct {
	trigger     int
	target      int
	probability float64
}

// NewModel validates the states and builds a model from them.
func NewModel(states ...State) (*Model, error) {
	if len(states) == 0 {
		return nil, fmt.Errorf("contagion model needs at least one state")
	}

	m := &Model{
		states:   states,
		index:    make(map[StateID]int, len(states)),
		evolveTo: make([]int, len(states)),
		triggers: make([][]rule, len(states)),
	}
	for i, s := range states {
		if s.ID == "" {
			return nil, fmt.Errorf("state %d has no id", i)
		}
		if _, dup := m.index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate state %q", s.ID)
		}
		m.index[s.ID] = i
	}

	for i, s := range states {
		m.evolveTo[i] = -1
		if s.Evolution != nil {
			target, ok := m.index[s.Evolution.Target]
			if !ok {
				return nil, fmt.Errorf("state %q evolves to %q: %w", s.ID, s.Evolution.Target, ErrUnknownState)
			}
			if s.Evolution.Duration < 1 {
				return nil, fmt.Errorf("state %q: evolution duration must be positive, got %d", s.ID, s.Evolution.Duration)
			}
			m.evolveTo[i] = target
			if len(s.Transitions) > 0 {
				slog.Warn("state has both transitions and an evolution; evolution wins", "state", s.ID)
			}
		}
		for _, t := range s.Transitions {
			trig, ok := m.index[t.Trigger]
			if !ok {
				return nil, fmt.Errorf("state %q triggered by %q: %w", s.ID, t.Trigger, ErrUnknownState)
			}
			target, ok := m.index[t.Target]
			if !ok {
				return nil, fmt.Errorf("state %q transitions to %q: %w", s.ID, t.Target, ErrUnknownState)
			}
			if t.Probability < 0 || t.Probability > 1 {
				return nil, fmt.Errorf("state %q: transition probability %.3f outside [0,1]", s.ID, t.Probability)
			}
			m.triggers[i] = append(m.triggers[i], rule{trigger: trig, target: target, probability: t.Probability})
		}
	}
	return m, nil
}

// Initial returns the index of the default starting state.
func (m *Model) Initial() int {
	return 0
}

// Index resolves a state id to its index.
func (m *Model) Index(id StateID) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// State returns the state at index i.
func (m *Model) State(i int) State {
	return m.states[i]
}

// States returns all states in model order.
func (m *Model) States() []State {
	return m.states
}

// Len returns the number of states.
func (m *Model) Len() int {
	return len(m.states)
}
