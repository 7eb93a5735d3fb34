package contagion

import (
	"fmt"
	"strings"
)

// Count is the number of agents in one state.
type Count struct {
	State  StateID `json:"state" db:"state"`
	Agents int     `json:"agents" db:"agents"`
}

// Census is a per-state head count in model order.
type Census struct {
	Tick   uint64  `json:"tick"`
	Counts []Count `json:"counts"`
}

// NewCensus tallies state indexes into a census.
func (m *Model) NewCensus(tick uint64, states []int) Census {
	tally := make([]int, len(m.states))
	for _, s := range states {
		tally[s]++
	}
	c := Census{Tick: tick, Counts: make([]Count, len(m.states))}
	for i, s := range m.states {
		c.Counts[i] = Count{State: s.ID, Agents: tally[i]}
	}
	return c
}

// Get returns the count for a state, or 0 if the state is absent.
func (c Census) Get(id StateID) int {
	for _, n := range c.Counts {
		if n.State == id {
			return n.Agents
		}
	}
	return 0
}

// Total returns the population covered by the census.
func (c Census) Total() int {
	total := 0
	for _, n := range c.Counts {
		total += n.Agents
	}
	return total
}

// String renders "S:\t10\tI:\t2\t" like a report row.
func (c Census) String() string {
	var b strings.Builder
	for _, n := range c.Counts {
		fmt.Fprintf(&b, "%s:\t%d\t", n.State, n.Agents)
	}
	return b.String()
}
