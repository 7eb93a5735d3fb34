package agents

import (
	"errors"
	"testing"

	"github.com/talgya/contagion-sim/internal/world"
)

func testCalendar(t *testing.T) world.Calendar {
	t.Helper()
	cal, err := world.NewCalendar(3, 2)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return cal
}

func TestConstrainConflict(t *testing.T) {
	a := New(4, "worker", 0, testCalendar(t), 0)

	if err := a.Constrain(1, 0, 0); err != nil {
		t.Fatalf("first constraint: %v", err)
	}
	if err := a.Constrain(1, 0, 0); err != nil {
		t.Fatalf("same activity twice should not conflict: %v", err)
	}
	// Pinning to the default activity on an unpinned cell is fine.
	if err := a.Constrain(0, 1, 1); err != nil {
		t.Fatalf("default pin: %v", err)
	}

	err := a.Constrain(2, 0, 0)
	if !errors.Is(err, ErrConfigurationConflict) {
		t.Fatalf("expected ErrConfigurationConflict, got %v", err)
	}
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Agent != 4 || conflict.Existing != 1 || conflict.Incoming != 2 {
		t.Fatalf("unexpected conflict detail: %+v", conflict)
	}
	if a.Planned(0, 0) != 1 {
		t.Fatalf("conflict must not overwrite cell, got %d", a.Planned(0, 0))
	}
}

func TestBindRewritesEveryCell(t *testing.T) {
	a := New(0, "worker", 0, testCalendar(t), 0)
	for d := 0; d < 3; d++ {
		if err := a.Constrain(1, d, 1); err != nil {
			t.Fatalf("constrain: %v", err)
		}
	}

	if got := a.Activities(); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("unexpected activities: %v", got)
	}
	if a.Scheduled() {
		t.Fatal("agent should not be scheduled before binding")
	}

	work := world.SiteRef{Activity: 1, Index: 3}
	if n := a.Bind(1, work); n != 3 {
		t.Fatalf("bound %d cells, want 3", n)
	}
	home := world.SiteRef{Activity: 0, Index: 0}
	a.Bind(0, home)

	if !a.Scheduled() {
		t.Fatal("agent should be fully scheduled")
	}
	for d := 0; d < 3; d++ {
		if a.Site(d, 1) != work || a.Site(d, 0) != home {
			t.Fatalf("day %d: unexpected sites %v %v", d, a.Site(d, 0), a.Site(d, 1))
		}
	}
}

func TestCommitResetsClock(t *testing.T) {
	a := New(0, "worker", 0, testCalendar(t), 0)
	a.SinceChange = 5
	if a.Commit() {
		t.Fatal("commit without pending change reported a change")
	}
	if a.SinceChange != 5 {
		t.Fatalf("no-op commit touched the clock: %d", a.SinceChange)
	}

	a.Next = 2
	if !a.Commit() || a.State != 2 || a.SinceChange != 0 {
		t.Fatalf("unexpected commit result: %+v", a)
	}
}

func TestSpawnerAssignsClassesAndIDs(t *testing.T) {
	s := NewSpawner(testCalendar(t), 0)
	pop := NewPopulation()
	pop.Add("a", s.SpawnClass("a", 0, 3))
	pop.Add("b", s.SpawnClass("b", 1, 2))

	if pop.Len() != 5 {
		t.Fatalf("population = %d", pop.Len())
	}
	for i, a := range pop.Agents {
		if a.ID != AgentID(i) {
			t.Fatalf("agent %d has id %d", i, a.ID)
		}
	}
	members, ok := pop.Class("b")
	if !ok || len(members) != 2 || members[0].Default != 1 {
		t.Fatalf("unexpected class b: %v %v", members, ok)
	}
	if _, ok := pop.Class("c"); ok {
		t.Fatal("unknown class reported as present")
	}
	if got := pop.Classes(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("class order = %v", got)
	}
}
