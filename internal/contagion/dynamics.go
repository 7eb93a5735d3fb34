package contagion

import "math/rand"

// Neighbors counts co-located agents per state index, excluding the agent
// that is deciding.
type Neighbors []int

// Decision is the outcome of one agent's compute phase.
type Decision struct {
	Next        int  // Pending state index; equals the current one on a no-op tick
	SinceChange int  // Updated ticks-since-last-change
	Contact     bool // A contact transition fired
	Trigger     int  // Trigger state index when Contact is set
}

// Decide computes an agent's pending state for this tick. It reads only its
// arguments, so any number of agents may decide concurrently as long as each
// has its own rng.
func (m *Model) Decide(current, since int, neighbors Neighbors, transmission float64, rng *rand.Rand) Decision {
	d := Decision{Next: current, SinceChange: since, Trigger: -1}

	switch m.states[current].Kind() {
	case KindTimer:
		d.SinceChange++
		if d.SinceChange >= m.states[current].Evolution.Duration {
			d.Next = m.evolveTo[current]
		}

	case KindContact:
		var qualifying []rule
		for _, r := range m.triggers[current] {
			if r.trigger < len(neighbors) && neighbors[r.trigger] > 0 {
				qualifying = append(qualifying, r)
			}
		}
		if len(qualifying) == 0 {
			return d
		}
		if rng.Float64() >= transmission {
			return d
		}
		r := qualifying[rng.Intn(len(qualifying))]
		if rng.Float64() < r.probability {
			d.Next = r.target
			d.SinceChange = 0
			d.Contact = true
			d.Trigger = r.trigger
		}
	}

	return d
}
