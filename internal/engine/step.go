package engine

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/contagion-sim/internal/agents"
	"github.com/talgya/contagion-sim/internal/contagion"
	"github.com/talgya/contagion-sim/internal/world"
)

// Step runs one tick:
//
//  1. record the census and apply seeding due this tick,
//  2. commit every agent's pending state (the tick boundary),
//  3. clear sites and let every agent enter its scheduled site,
//  4. barrier, then compute every agent's next state from its neighbors,
//  5. advance the clock.
//
// Phases 3 and 4 run across Workers goroutines. Agents read only committed
// states during compute and each draws from its own stream, so the outcome
// does not depend on scheduling.
func (s *Simulation) Step(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.Clock.Tick
	observed := s.census() // seeding only touches pending states
	if err := s.applySeeding(tick); err != nil {
		return err
	}
	s.History = append(s.History, observed)

	for _, a := range s.Population.Agents {
		a.Commit()
	}

	s.Roster.ClearOccupants()
	day, hour := s.Clock.Day, s.Clock.Hour
	if err := s.forEachChunk(ctx, func(_ int, batch []*agents.Agent) error {
		for _, a := range batch {
			site := s.Roster.Get(a.Site(day, hour))
			if site == nil {
				return fmt.Errorf("agent %d has no site at day %d hour %d", a.ID, day, hour)
			}
			site.Enter(uint64(a.ID))
		}
		return nil
	}); err != nil {
		return fmt.Errorf("occupy: %w", err)
	}

	// Barrier passed: every occupant set is complete.
	s.Roster.SettleOccupants()
	presence := s.tallyPresence()

	found := make([][]Event, s.Workers)
	if err := s.forEachChunk(ctx, func(i int, batch []*agents.Agent) error {
		found[i] = s.compute(tick, day, hour, batch, presence)
		return nil
	}); err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	for _, events := range found {
		for _, e := range events {
			s.emit(e)
		}
	}

	s.Clock.Advance(s.Calendar)
	return nil
}

// tallyPresence counts, per site, the occupants in each state. It reads the
// occupant sets filled during the occupy phase.
func (s *Simulation) tallyPresence() map[world.SiteRef]contagion.Neighbors {
	presence := make(map[world.SiteRef]contagion.Neighbors, s.Roster.Len())
	for _, site := range s.Roster.All() {
		present := site.Present()
		if len(present) == 0 {
			continue
		}
		counts := make(contagion.Neighbors, s.Model.Len())
		for _, id := range present {
			if a := s.Population.Get(agents.AgentID(id)); a != nil {
				counts[a.State]++
			}
		}
		presence[site.Ref] = counts
	}
	return presence
}

// compute decides the pending state for a batch of agents. It writes only
// to the batch's own Next and SinceChange fields.
func (s *Simulation) compute(tick uint64, day, hour int, batch []*agents.Agent, presence map[world.SiteRef]contagion.Neighbors) []Event {
	var events []Event
	neighbors := make(contagion.Neighbors, s.Model.Len())
	for _, a := range batch {
		ref := a.Site(day, hour)
		site := s.Roster.Get(ref)

		clear(neighbors)
		copy(neighbors, presence[ref])
		neighbors[a.State]-- // not our own neighbor

		rng := s.Entropy.Stream(tick, uint64(a.ID))
		d := s.Model.Decide(a.State, a.SinceChange, neighbors, site.Transmission, rng)
		a.Next = d.Next
		a.SinceChange = d.SinceChange

		if d.Contact {
			from := s.Model.State(a.State).ID
			to := s.Model.State(d.Next).ID
			events = append(events, Event{
				Tick:        tick,
				Description: fmt.Sprintf("infection %s --> %s at %s", from, to, site),
				Category:    "infection",
				Meta: map[string]any{
					"agent":   a.ID,
					"site":    site.Ref.Index,
					"label":   site.Label,
					"trigger": s.Model.State(d.Trigger).ID,
				},
			})
		}
	}
	return events
}

// chunks splits the population into one contiguous batch per worker.
func (s *Simulation) chunks() [][]*agents.Agent {
	all := s.Population.Agents
	if len(all) == 0 {
		return nil
	}
	size := (len(all) + s.Workers - 1) / s.Workers
	return slices.Collect(slices.Chunk(all, size))
}

// forEachChunk runs fn over every batch concurrently and waits for all.
// Returning from it is the barrier between phases.
func (s *Simulation) forEachChunk(ctx context.Context, fn func(int, []*agents.Agent) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, batch := range s.chunks() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i, batch)
		})
	}
	return g.Wait()
}
