package config

import "github.com/talgya/contagion-sim/internal/contagion"

// Default returns the reference scenario: a 7-day, 6-slot week, an SIRS
// model, and two commuter classes of 60 agents each.
func Default() *Scenario {
	const (
		days  = 7
		hours = 6
		week  = days * hours
	)
	weekdays := &Span{From: 0, To: days - 3}
	weekend := &Span{From: days - 3, To: days}
	at := func(h int) *Span { return &Span{From: h, To: h + 1} }

	sc := &Scenario{
		Name:     "weekly-sirs",
		Calendar: CalendarConfig{Days: days, Hours: hours},
		Activities: []ActivityConfig{
			{Label: "rest1", Capacity: 3, Transmission: 0.9},
			{Label: "bus", Capacity: 20, Transmission: 0.25},
			{Label: "work1", Capacity: 60, Transmission: 0.02},
			{Label: "rest2", Capacity: 3, Transmission: 0.9},
			{Label: "car", Capacity: 2, Transmission: 0.5},
			{Label: "work2", Capacity: 40, Transmission: 0.01},
			{Label: "leisure", Capacity: 5, Transmission: 0.2},
			{Label: "weekend", Capacity: 25, Transmission: 0.01},
		},
		States: []StateConfig{
			{ID: "S", Transitions: []contagion.Transition{{Trigger: "I", Target: "I", Probability: 0.03}}},
			{ID: "I", Evolution: &contagion.Evolution{Target: "R", Duration: week * 3 / 2}},
			{ID: "R", Evolution: &contagion.Evolution{Target: "S", Duration: week * 2}},
		},
		Classes: []ClassConfig{
			{Name: "class1", Default: "rest1", Count: 60},
			{Name: "class2", Default: "rest2", Count: 60},
		},
		Constraints: []ConstraintConfig{
			{Class: "class1", Activity: "rest1", Days: weekdays, Hours: at(0)},
			{Class: "class2", Activity: "rest2", Days: weekdays, Hours: at(0)},
			{Class: "class1", Activity: "bus", Days: weekdays, Hours: at(1)},
			{Class: "class2", Activity: "car", Days: weekdays, Hours: at(1)},
			{Class: "class1", Activity: "work1", Days: weekdays, Hours: at(2)},
			{Class: "class2", Activity: "work2", Days: weekdays, Hours: at(2)},
			{Class: "class1", Activity: "bus", Days: weekdays, Hours: at(3)},
			{Class: "class2", Activity: "car", Days: weekdays, Hours: at(3)},
			{Class: "class1", Activity: "leisure", Days: weekdays, Hours: at(4)},
			{Class: "class2", Activity: "leisure", Days: weekdays, Hours: at(4)},
			{Class: "class1", Activity: "rest1", Days: weekdays, Hours: at(5)},
			{Class: "class2", Activity: "rest2", Days: weekdays, Hours: at(5)},
			{Class: "class1", Activity: "rest1", Days: weekend, Hours: &Span{From: 0, To: 3}},
			{Class: "class2", Activity: "rest2", Days: weekend, Hours: &Span{From: 0, To: 3}},
			{Class: "class1", Activity: "weekend", Days: weekend, Hours: &Span{From: 3, To: hours}},
			{Class: "class2", Activity: "weekend", Days: weekend, Hours: &Span{From: 3, To: hours}},
		},
		Seeding: []SeedConfig{
			{Tick: 0, Count: 3, State: "I"}, // 2% of the population
		},
		Run: RunConfig{
			Ticks: week * 100,
			Seed:  42,
		},
		Storage: StorageConfig{Path: "data/contagion.db"},
	}
	sc.applyDefaults()
	sc.applyEnvOverrides()
	return sc
}
