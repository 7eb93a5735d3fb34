package contagion

import (
	"errors"
	"testing"
)

func sirStates() []State {
	return []State{
		{ID: "S", Transitions: []Transition{{Trigger: "I", Target: "I", Probability: 0.5}}},
		{ID: "I", Evolution: &Evolution{Target: "R", Duration: 4}},
		{ID: "R", Evolution: &Evolution{Target: "S", Duration: 6}},
	}
}

func TestNewModelResolvesStates(t *testing.T) {
	m, err := NewModel(sirStates()...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if m.Len() != 3 || m.Initial() != 0 {
		t.Fatalf("unexpected model shape: len=%d initial=%d", m.Len(), m.Initial())
	}
	if i, ok := m.Index("R"); !ok || i != 2 {
		t.Fatalf("index R = %d, %v", i, ok)
	}
	if m.State(0).Kind() != KindContact || m.State(1).Kind() != KindTimer {
		t.Fatalf("unexpected kinds: %s %s", m.State(0).Kind(), m.State(1).Kind())
	}
}

func TestNewModelRejectsUnknownTargets(t *testing.T) {
	states := sirStates()
	states[1].Evolution = &Evolution{Target: "X", Duration: 2}
	if _, err := NewModel(states...); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState, got %v", err)
	}

	states = sirStates()
	states[0].Transitions = []Transition{{Trigger: "Z", Target: "I", Probability: 1}}
	if _, err := NewModel(states...); !errors.Is(err, ErrUnknownState) {
		t.Fatalf("expected ErrUnknownState for trigger, got %v", err)
	}
}

func TestNewModelRejectsBadRules(t *testing.T) {
	cases := map[string][]State{
		"empty":     nil,
		"duplicate": {{ID: "S"}, {ID: "S"}},
		"duration":  {{ID: "S", Evolution: &Evolution{Target: "S", Duration: 0}}},
		"probability": {
			{ID: "S", Transitions: []Transition{{Trigger: "S", Target: "S", Probability: 1.5}}},
		},
	}
	for name, states := range cases {
		if _, err := NewModel(states...); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestEvolutionTakesPrecedence(t *testing.T) {
	s := State{
		ID:          "E",
		Transitions: []Transition{{Trigger: "E", Target: "E", Probability: 1}},
		Evolution:   &Evolution{Target: "E", Duration: 1},
	}
	if s.Kind() != KindTimer {
		t.Fatalf("expected timer kind, got %s", s.Kind())
	}
	if (State{ID: "D"}).Kind() != KindTerminal {
		t.Fatal("expected terminal kind for a state without rules")
	}
}

func TestCensusTotals(t *testing.T) {
	m, err := NewModel(sirStates()...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	c := m.NewCensus(7, []int{0, 0, 1, 2, 2, 2})
	if c.Total() != 6 {
		t.Fatalf("total = %d", c.Total())
	}
	if c.Get("S") != 2 || c.Get("I") != 1 || c.Get("R") != 3 || c.Get("X") != 0 {
		t.Fatalf("unexpected census: %+v", c)
	}
	if c.String() != "S:\t2\tI:\t1\tR:\t3\t" {
		t.Fatalf("unexpected render: %q", c.String())
	}
}
