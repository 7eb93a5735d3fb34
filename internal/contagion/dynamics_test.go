package contagion

import (
	"math/rand"
	"testing"
)

func TestDecideTimerFiresAtDuration(t *testing.T) {
	m, err := NewModel(sirStates()...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	rng := rand.New(rand.NewSource(1))

	since := 0
	for tick := 1; tick <= 4; tick++ {
		d := m.Decide(1, since, nil, 1, rng)
		since = d.SinceChange
		if tick < 4 && d.Next != 1 {
			t.Fatalf("tick %d: evolved early to %d", tick, d.Next)
		}
		if tick == 4 && d.Next != 2 {
			t.Fatalf("tick %d: expected evolution to R, got %d", tick, d.Next)
		}
	}
}

func TestDecideContactNeedsNeighbor(t *testing.T) {
	m, err := NewModel(sirStates()...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	rng := rand.New(rand.NewSource(1))

	d := m.Decide(0, 5, Neighbors{3, 0, 2}, 1, rng)
	if d.Next != 0 || d.Contact || d.SinceChange != 5 {
		t.Fatalf("expected no-op without infected neighbors, got %+v", d)
	}
}

func TestDecideContactCertain(t *testing.T) {
	states := sirStates()
	states[0].Transitions[0].Probability = 1
	m, err := NewModel(states...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	rng := rand.New(rand.NewSource(1))

	d := m.Decide(0, 9, Neighbors{0, 1, 0}, 1, rng)
	if d.Next != 1 || !d.Contact || d.SinceChange != 0 || d.Trigger != 1 {
		t.Fatalf("expected certain infection, got %+v", d)
	}

	d = m.Decide(0, 9, Neighbors{0, 1, 0}, 0, rng)
	if d.Next != 0 || d.Contact {
		t.Fatalf("expected zero transmission to block, got %+v", d)
	}
}

func TestDecideTerminalIsFixedPoint(t *testing.T) {
	m, err := NewModel(State{ID: "D"}, State{ID: "X", Transitions: []Transition{{Trigger: "D", Target: "D", Probability: 1}}})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	d := m.Decide(0, 3, Neighbors{4, 4}, 1, rng)
	if d.Next != 0 || d.SinceChange != 3 {
		t.Fatalf("terminal state moved: %+v", d)
	}
}

func TestDecidePicksUniformlyAmongQualifying(t *testing.T) {
	m, err := NewModel(
		State{ID: "S", Transitions: []Transition{
			{Trigger: "A", Target: "A", Probability: 1},
			{Trigger: "B", Target: "B", Probability: 1},
			{Trigger: "C", Target: "C", Probability: 1},
		}},
		State{ID: "A"}, State{ID: "B"}, State{ID: "C"},
	)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	rng := rand.New(rand.NewSource(7))

	hits := make([]int, 4)
	for i := 0; i < 3000; i++ {
		// Many A neighbors must not bias the pick toward A; C is absent.
		d := m.Decide(0, 0, Neighbors{0, 50, 1, 0}, 1, rng)
		hits[d.Next]++
	}
	if hits[3] != 0 {
		t.Fatalf("absent trigger was picked %d times", hits[3])
	}
	if hits[1] < 1300 || hits[1] > 1700 || hits[2] < 1300 || hits[2] > 1700 {
		t.Fatalf("expected roughly even split between A and B, got %v", hits)
	}
}
