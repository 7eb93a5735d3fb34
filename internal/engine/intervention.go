package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/contagion-sim/internal/contagion"
)

// Seed picks n distinct agents uniformly at random and redirects them to a
// state. The change commits at the next tick boundary.
func (s *Simulation) Seed(n int, state contagion.StateID) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed(n, state)
}

func (s *Simulation) seed(n int, state contagion.StateID) ([]uint64, error) {
	target, ok := s.Model.Index(state)
	if !ok {
		return nil, fmt.Errorf("seed state %q: %w", state, ErrUnknownReference)
	}
	if n < 0 || n > s.Population.Len() {
		return nil, fmt.Errorf("seed %d of %d agents: %w", n, s.Population.Len(), ErrSeedOverflow)
	}

	picked := make([]uint64, 0, n)
	for _, i := range s.Entropy.Rand().Perm(s.Population.Len())[:n] {
		a := s.Population.Agents[i]
		a.Redirect(target)
		picked = append(picked, uint64(a.ID))
	}

	s.emit(Event{
		Tick:        s.Clock.Tick,
		Description: fmt.Sprintf("%d agents seeded into %s", n, state),
		Category:    "seed",
		Meta: map[string]any{
			"state":  string(state),
			"agents": picked,
		},
	})
	slog.Info("seed intervention", "tick", s.Clock.Tick, "state", state, "count", n)
	return picked, nil
}

// ScheduleSeed queues a seeding for a future tick. It is applied at the
// start of that tick, before the commit, so it takes effect on that tick.
func (s *Simulation) ScheduleSeed(tick uint64, n int, state contagion.StateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Model.Index(state); !ok {
		return fmt.Errorf("schedule seed %q: %w", state, ErrUnknownReference)
	}
	if n < 0 || n > s.Population.Len() {
		return fmt.Errorf("schedule seed %d of %d agents: %w", n, s.Population.Len(), ErrSeedOverflow)
	}
	if tick < s.Clock.Tick {
		return fmt.Errorf("schedule seed at tick %d: already at tick %d", tick, s.Clock.Tick)
	}
	s.pending = append(s.pending, seedOrder{Tick: tick, Count: n, State: state})
	return nil
}

func (s *Simulation) applySeeding(tick uint64) error {
	kept := s.pending[:0]
	for _, o := range s.pending {
		if o.Tick != tick {
			kept = append(kept, o)
			continue
		}
		if _, err := s.seed(o.Count, o.State); err != nil {
			return err
		}
	}
	s.pending = kept
	return nil
}
