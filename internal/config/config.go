// Package config loads simulation scenarios from YAML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/contagion-sim/internal/contagion"
	"github.com/talgya/contagion-sim/internal/engine"
	"github.com/talgya/contagion-sim/internal/schedule"
	"github.com/talgya/contagion-sim/internal/world"
)

// Scenario is a complete run description.
type Scenario struct {
	Name string `yaml:"name"`

	// Calendar sets the cycle: Days per week, Hours (slots) per day.
	Calendar CalendarConfig `yaml:"calendar"`

	// Activities in registration order.
	Activities []ActivityConfig `yaml:"activities"`

	// States of the compartment model. The first one is where every agent
	// starts.
	States []StateConfig `yaml:"states"`

	// Classes of agents.
	Classes []ClassConfig `yaml:"classes"`

	// Constraints pin classes to activities over blocks of days and hours.
	Constraints []ConstraintConfig `yaml:"constraints"`

	// Seeding introduces agents into a state at given ticks.
	Seeding []SeedConfig `yaml:"seeding"`

	Run     RunConfig     `yaml:"run"`
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

// CalendarConfig sets the calendar dimensions.
type CalendarConfig struct {
	Days  int `yaml:"days"`
	Hours int `yaml:"hours"`
}

// ActivityConfig describes one activity.
type ActivityConfig struct {
	Label        string  `yaml:"label"`
	Capacity     int     `yaml:"capacity"`
	Transmission float64 `yaml:"transmission"`
}

// StateConfig describes one compartment.
type StateConfig struct {
	ID          string                 `yaml:"id"`
	Transitions []contagion.Transition `yaml:"transitions,omitempty"`
	Evolution   *contagion.Evolution   `yaml:"evolution,omitempty"`
}

// ClassConfig describes a group of agents.
type ClassConfig struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default"`
	Count   int    `yaml:"count"`
}

// ConstraintConfig pins a class to an activity. Days and Hours accept a
// single index, a {from, to} half-open block, or nothing for the whole
// cycle.
type ConstraintConfig struct {
	Class    string `yaml:"class"`
	Activity string `yaml:"activity"`
	Days     *Span  `yaml:"days,omitempty"`
	Hours    *Span  `yaml:"hours,omitempty"`
}

// SeedConfig seeds Count agents into State at Tick.
type SeedConfig struct {
	Tick  uint64 `yaml:"tick"`
	Count int    `yaml:"count"`
	State string `yaml:"state"`
}

// RunConfig controls the run loop.
type RunConfig struct {
	// Ticks to run in batch mode. 0 means one full calendar cycle.
	Ticks uint64 `yaml:"ticks"`

	// Seed for all randomness. 0 picks a random seed.
	Seed int64 `yaml:"seed"`

	// Workers per phase; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`

	// SummaryEvery logs a census every N ticks; 0 logs once per sim-day.
	SummaryEvery uint64 `yaml:"summary_every"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// Path to the SQLite database. Empty disables persistence.
	Path string `yaml:"path"`
}

// APIConfig configures the HTTP API used by "serve".
type APIConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"admin_key,omitempty"`
}

// LoggingConfig sets the log level: "debug", "info" (default), "warn".
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Span is a half-open block [From, To).
type Span struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// UnmarshalYAML accepts either a scalar index or a {from, to} mapping.
func (s *Span) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		v, err := strconv.Atoi(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: span must be an integer or {from, to}: %w", node.Line, err)
		}
		*s = Span{From: v, To: v + 1}
		return nil
	}
	type raw Span
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	*s = Span(r)
	return nil
}

// Load reads a scenario from a YAML file, then applies environment
// overrides.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario and applies environment overrides.
func Parse(data []byte) (*Scenario, error) {
	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sc.applyDefaults()
	sc.applyEnvOverrides()
	return sc, nil
}

// Marshal renders the scenario as YAML.
func (sc *Scenario) Marshal() ([]byte, error) {
	return yaml.Marshal(sc)
}

func (sc *Scenario) applyDefaults() {
	if sc.Name == "" {
		sc.Name = "scenario"
	}
	if sc.API.Port == 0 {
		sc.API.Port = 8080
	}
	if sc.Logging.Level == "" {
		sc.Logging.Level = "info"
	}
}

// applyEnvOverrides lets CONTAGION_* variables win over the file.
func (sc *Scenario) applyEnvOverrides() {
	if v := os.Getenv("CONTAGION_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			sc.Run.Seed = seed
		}
	}
	if v := os.Getenv("CONTAGION_DB"); v != "" {
		sc.Storage.Path = v
	}
	if v := os.Getenv("CONTAGION_ADMIN_KEY"); v != "" {
		sc.API.AdminKey = v
	}
	if v := os.Getenv("CONTAGION_LOG_LEVEL"); v != "" {
		sc.Logging.Level = v
	}
}

// Validate checks every cross reference so setup fails with a readable
// message rather than deep inside the scheduler.
func (sc *Scenario) Validate() error {
	var errs []error

	if sc.Calendar.Days < 1 || sc.Calendar.Hours < 1 {
		errs = append(errs, fmt.Errorf("calendar dimensions must be positive, got %dx%d", sc.Calendar.Days, sc.Calendar.Hours))
	}
	if len(sc.States) == 0 {
		errs = append(errs, errors.New("at least one state is required"))
	}

	acts := make(map[string]bool, len(sc.Activities))
	for _, a := range sc.Activities {
		acts[a.Label] = true
	}
	states := make(map[string]bool, len(sc.States))
	for _, s := range sc.States {
		states[s.ID] = true
	}
	classes := make(map[string]bool, len(sc.Classes))
	for _, c := range sc.Classes {
		classes[c.Name] = true
		if !acts[c.Default] {
			errs = append(errs, fmt.Errorf("class %q default activity %q: %w", c.Name, c.Default, schedule.ErrUnknownReference))
		}
	}
	for _, s := range sc.States {
		for _, t := range s.Transitions {
			if !states[string(t.Trigger)] || !states[string(t.Target)] {
				errs = append(errs, fmt.Errorf("state %q transition %s -> %s: %w", s.ID, t.Trigger, t.Target, schedule.ErrUnknownReference))
			}
		}
		if s.Evolution != nil && !states[string(s.Evolution.Target)] {
			errs = append(errs, fmt.Errorf("state %q evolves to %q: %w", s.ID, s.Evolution.Target, schedule.ErrUnknownReference))
		}
	}
	for i, c := range sc.Constraints {
		if !classes[c.Class] {
			errs = append(errs, fmt.Errorf("constraint %d: class %q: %w", i, c.Class, schedule.ErrUnknownReference))
		}
		if !acts[c.Activity] {
			errs = append(errs, fmt.Errorf("constraint %d: activity %q: %w", i, c.Activity, schedule.ErrUnknownReference))
		}
		days, hours := sc.spans(c)
		if days.From < 0 || days.To > sc.Calendar.Days || days.From >= days.To ||
			hours.From < 0 || hours.To > sc.Calendar.Hours || hours.From >= hours.To {
			errs = append(errs, fmt.Errorf("constraint %d: block days %v hours %v outside calendar: %w", i, days, hours, schedule.ErrUnknownReference))
		}
	}
	for i, s := range sc.Seeding {
		if !states[s.State] {
			errs = append(errs, fmt.Errorf("seeding %d: state %q: %w", i, s.State, schedule.ErrUnknownReference))
		}
	}

	return errors.Join(errs...)
}

// spans resolves a constraint's blocks, defaulting to the whole cycle.
func (sc *Scenario) spans(c ConstraintConfig) (schedule.Span, schedule.Span) {
	days := schedule.Span{From: 0, To: sc.Calendar.Days}
	if c.Days != nil {
		days = schedule.Span{From: c.Days.From, To: c.Days.To}
	}
	hours := schedule.Span{From: 0, To: sc.Calendar.Hours}
	if c.Hours != nil {
		hours = schedule.Span{From: c.Hours.From, To: c.Hours.To}
	}
	return days, hours
}

// Build validates the scenario and converts it into an engine setup.
func (sc *Scenario) Build() (engine.Setup, error) {
	if err := sc.Validate(); err != nil {
		return engine.Setup{}, err
	}

	cal, err := world.NewCalendar(sc.Calendar.Days, sc.Calendar.Hours)
	if err != nil {
		return engine.Setup{}, err
	}

	acts := world.NewActivities()
	for _, a := range sc.Activities {
		if _, err := acts.Add(a.Label, a.Capacity, a.Transmission); err != nil {
			return engine.Setup{}, err
		}
	}

	states := make([]contagion.State, 0, len(sc.States))
	for _, s := range sc.States {
		states = append(states, contagion.State{
			ID:          contagion.StateID(s.ID),
			Transitions: s.Transitions,
			Evolution:   s.Evolution,
		})
	}
	model, err := contagion.NewModel(states...)
	if err != nil {
		return engine.Setup{}, err
	}

	classes := make([]engine.Class, 0, len(sc.Classes))
	for _, c := range sc.Classes {
		classes = append(classes, engine.Class{Name: c.Name, Default: c.Default, Count: c.Count})
	}

	ranges := make([]schedule.Range, 0, len(sc.Constraints))
	for _, c := range sc.Constraints {
		days, hours := sc.spans(c)
		ranges = append(ranges, schedule.Range{Class: c.Class, Activity: c.Activity, Days: days, Hours: hours})
	}

	return engine.Setup{
		Name:        sc.Name,
		Calendar:    cal,
		Activities:  acts,
		Model:       model,
		Classes:     classes,
		Constraints: schedule.Expand(ranges),
		Seed:        sc.Run.Seed,
		Workers:     sc.Run.Workers,
	}, nil
}

// Population returns the total number of agents across classes.
func (sc *Scenario) Population() int {
	n := 0
	for _, c := range sc.Classes {
		n += c.Count
	}
	return n
}
