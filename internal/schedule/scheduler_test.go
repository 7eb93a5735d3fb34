package schedule

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/contagion-sim/internal/agents"
	"github.com/talgya/contagion-sim/internal/world"
)

type fixture struct {
	cal  world.Calendar
	acts *world.Activities
	pop  *agents.Population
}

func newFixture(t *testing.T, days, hours int) *fixture {
	t.Helper()
	cal, err := world.NewCalendar(days, hours)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	return &fixture{cal: cal, acts: world.NewActivities(), pop: agents.NewPopulation()}
}

func (f *fixture) activity(t *testing.T, label string, capacity int) world.ActivityID {
	t.Helper()
	id, err := f.acts.Add(label, capacity, 0.5)
	if err != nil {
		t.Fatalf("add activity %s: %v", label, err)
	}
	return id
}

func (f *fixture) scheduler(seed int64) *Scheduler {
	return &Scheduler{
		Calendar:   f.cal,
		Activities: f.acts,
		Population: f.pop,
		Rand:       rand.New(rand.NewSource(seed)),
	}
}

// weekly builds the two-class commuter scenario: homes by default, shared
// transport and work on weekdays, leisure for everyone in the evening.
func weekly(t *testing.T) (*fixture, []Constraint) {
	f := newFixture(t, 7, 6)
	home1 := f.activity(t, "rest1", 3)
	home2 := f.activity(t, "rest2", 3)
	f.activity(t, "bus", 20)
	f.activity(t, "car", 2)
	f.activity(t, "work1", 60)
	f.activity(t, "work2", 40)
	f.activity(t, "leisure", 5)
	f.activity(t, "weekend", 25)

	spawner := agents.NewSpawner(f.cal, 0)
	f.pop.Add("class1", spawner.SpawnClass("class1", home1, 60))
	f.pop.Add("class2", spawner.SpawnClass("class2", home2, 60))

	ranges := []Range{
		{"class1", "bus", Span{0, 4}, At(1)},
		{"class2", "car", Span{0, 4}, At(1)},
		{"class1", "work1", Span{0, 4}, At(2)},
		{"class2", "work2", Span{0, 4}, At(2)},
		{"class1", "bus", Span{0, 4}, At(3)},
		{"class2", "car", Span{0, 4}, At(3)},
		{"class1", "leisure", Span{0, 4}, At(4)},
		{"class2", "leisure", Span{0, 4}, At(4)},
		{"class1", "rest1", Span{4, 7}, Span{0, 3}},
		{"class2", "rest2", Span{4, 7}, Span{0, 3}},
		{"class1", "weekend", Span{4, 7}, Span{3, 6}},
		{"class2", "weekend", Span{4, 7}, Span{3, 6}},
	}
	return f, Expand(ranges)
}

func TestExpandRanges(t *testing.T) {
	got := Expand([]Range{{"c", "a", Span{1, 3}, Span{0, 2}}})
	if len(got) != 4 {
		t.Fatalf("expanded %d constraints, want 4", len(got))
	}
	if got[0] != (Constraint{"c", "a", 1, 0}) || got[3] != (Constraint{"c", "a", 2, 1}) {
		t.Fatalf("unexpected expansion: %v", got)
	}
}

func TestRunRespectsCapacityAndContinuity(t *testing.T) {
	f, constraints := weekly(t)
	roster, err := f.scheduler(11).Run(constraints)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	occ := Tally(f.cal, roster, f.pop, "")
	for _, site := range roster.All() {
		if peak := occ.Peak(site.Ref); peak > site.Capacity {
			t.Fatalf("%s holds %d agents, capacity %d", site, peak, site.Capacity)
		}
		if site.Occupied > site.Capacity {
			t.Fatalf("%s favored by %d agents, capacity %d", site, site.Occupied, site.Capacity)
		}
	}

	for _, a := range f.pop.Agents {
		if !a.Scheduled() {
			t.Fatalf("agent %d has unbound cells", a.ID)
		}
		bound := make(map[world.ActivityID]world.SiteRef)
		for day := 0; day < f.cal.Days; day++ {
			for hour := 0; hour < f.cal.Hours; hour++ {
				act := a.Planned(day, hour)
				ref := a.Site(day, hour)
				if ref.Activity != act {
					t.Fatalf("agent %d day %d hour %d: site of activity %d for planned %d", a.ID, day, hour, ref.Activity, act)
				}
				if prev, ok := bound[act]; ok && prev != ref {
					t.Fatalf("agent %d uses two sites for activity %d: %v and %v", a.ID, act, prev, ref)
				}
				bound[act] = ref
			}
		}
	}
}

func TestRunSizesForPeakDemand(t *testing.T) {
	f, constraints := weekly(t)
	s := f.scheduler(3)
	roster, err := s.Run(constraints)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := map[string]int{
		"rest1":   20, // 60 agents / 3
		"rest2":   20,
		"bus":     3, // 60 / 20
		"car":     30,
		"work1":   1,
		"work2":   2, // 60 / 40 rounds up
		"leisure": 24,
		"weekend": 5, // 120 / 25 rounds up
	}
	for _, act := range f.acts.All() {
		if got := len(roster.ForActivity(act.ID)); got != want[act.Label] {
			t.Errorf("%s: %d sites, want %d", act.Label, got, want[act.Label])
		}
		for i, site := range roster.ForActivity(act.ID) {
			if site.Ref.Index != i {
				t.Errorf("%s: site %d numbered %d", act.Label, i, site.Ref.Index)
			}
		}
	}
}

func TestRunSkipsUnusedActivity(t *testing.T) {
	f := newFixture(t, 2, 2)
	home := f.activity(t, "home", 4)
	idle := f.activity(t, "idle", 4)
	f.pop.Add("c", agents.NewSpawner(f.cal, 0).SpawnClass("c", home, 5))

	roster, err := f.scheduler(1).Run(nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(roster.ForActivity(idle)) != 0 {
		t.Fatal("unused activity got sites")
	}
	if len(roster.ForActivity(home)) != 2 {
		t.Fatalf("home sites = %d, want 2", len(roster.ForActivity(home)))
	}
}

func TestRunConflictAssignsNothing(t *testing.T) {
	f := newFixture(t, 2, 2)
	home := f.activity(t, "home", 2)
	f.activity(t, "work", 2)
	f.activity(t, "shop", 2)
	f.pop.Add("c", agents.NewSpawner(f.cal, 0).SpawnClass("c", home, 2))

	roster, err := f.scheduler(1).Run([]Constraint{
		{Class: "c", Activity: "work", Day: 0, Hour: 0},
		{Class: "c", Activity: "shop", Day: 0, Hour: 0},
	})
	if !errors.Is(err, ErrConfigurationConflict) {
		t.Fatalf("expected ErrConfigurationConflict, got %v", err)
	}
	if roster != nil {
		t.Fatal("roster returned despite conflict")
	}
	for _, a := range f.pop.Agents {
		if a.Site(0, 0).Valid() || a.Site(1, 1).Valid() {
			t.Fatalf("agent %d was assigned a site", a.ID)
		}
	}
}

func TestRunUnknownReferences(t *testing.T) {
	f := newFixture(t, 2, 2)
	home := f.activity(t, "home", 2)
	f.pop.Add("c", agents.NewSpawner(f.cal, 0).SpawnClass("c", home, 1))

	cases := []Constraint{
		{Class: "ghost", Activity: "home", Day: 0, Hour: 0},
		{Class: "c", Activity: "moon", Day: 0, Hour: 0},
		{Class: "c", Activity: "home", Day: 2, Hour: 0},
		{Class: "c", Activity: "home", Day: 0, Hour: -1},
	}
	for _, c := range cases {
		if _, err := f.scheduler(1).Run([]Constraint{c}); !errors.Is(err, ErrUnknownReference) {
			t.Errorf("%s: expected ErrUnknownReference, got %v", c, err)
		}
	}
}

func TestRunStaggeredUseExhaustsCapacity(t *testing.T) {
	// Two agents use the gym on different days: peak demand is 1, so one
	// site of capacity 1 is built, but both agents need to favor it.
	f := newFixture(t, 2, 1)
	home := f.activity(t, "home", 2)
	f.activity(t, "gym", 1)
	spawner := agents.NewSpawner(f.cal, 0)
	f.pop.Add("a", spawner.SpawnClass("a", home, 1))
	f.pop.Add("b", spawner.SpawnClass("b", home, 1))

	_, err := f.scheduler(1).Run([]Constraint{
		{Class: "a", Activity: "gym", Day: 0, Hour: 0},
		{Class: "b", Activity: "gym", Day: 1, Hour: 0},
	})
	if !errors.Is(err, ErrCapacityExhaustion) {
		t.Fatalf("expected ErrCapacityExhaustion, got %v", err)
	}
	var ex *ExhaustionError
	if !errors.As(err, &ex) || ex.Activity != "gym" || ex.Agent != 1 {
		t.Fatalf("unexpected exhaustion detail: %+v", ex)
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	f1, c1 := weekly(t)
	f2, c2 := weekly(t)
	if _, err := f1.scheduler(99).Run(c1); err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if _, err := f2.scheduler(99).Run(c2); err != nil {
		t.Fatalf("run 2: %v", err)
	}
	for i, a := range f1.pop.Agents {
		b := f2.pop.Agents[i]
		for day := 0; day < f1.cal.Days; day++ {
			for hour := 0; hour < f1.cal.Hours; hour++ {
				if a.Site(day, hour) != b.Site(day, hour) {
					t.Fatalf("agent %d differs at day %d hour %d", a.ID, day, hour)
				}
			}
		}
	}
}
