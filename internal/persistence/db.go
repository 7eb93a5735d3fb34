// Package persistence provides SQLite-based storage for runs: the site
// roster, per-tick census history, and events.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/contagion-sim/internal/contagion"
	"github.com/talgya/contagion-sim/internal/engine"
	"github.com/talgya/contagion-sim/internal/world"
)

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB

	mu          sync.Mutex
	savedCensus map[string]int // run ID → censuses already written
}

// RunRow is one stored run.
type RunRow struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Seed      int64  `db:"seed" json:"seed"`
	Days      int    `db:"days" json:"days"`
	Hours     int    `db:"hours" json:"hours"`
	Agents    int    `db:"agents" json:"agents"`
	Sites     int    `db:"sites" json:"sites"`
	LastTick  int64  `db:"last_tick" json:"last_tick"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// SiteRow is one stored site.
type SiteRow struct {
	Activity     string  `db:"activity" json:"activity"`
	Idx          int     `db:"idx" json:"index"`
	Capacity     int     `db:"capacity" json:"capacity"`
	Transmission float64 `db:"transmission" json:"transmission"`
	Occupied     int     `db:"occupied" json:"occupied"`
}

type censusRow struct {
	Tick   int64  `db:"tick"`
	State  string `db:"state"`
	Agents int    `db:"agents"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, savedCensus: make(map[string]int)}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		seed INTEGER NOT NULL,
		days INTEGER NOT NULL,
		hours INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		sites INTEGER NOT NULL,
		last_tick INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		run_id TEXT NOT NULL,
		activity TEXT NOT NULL,
		idx INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		transmission REAL NOT NULL,
		occupied INTEGER NOT NULL,
		PRIMARY KEY (run_id, activity, idx)
	);

	CREATE TABLE IF NOT EXISTS census (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		ord INTEGER NOT NULL,
		state TEXT NOT NULL,
		agents INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick, ord)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun records (or refreshes) the run header.
func (db *DB) SaveRun(sim *engine.Simulation) error {
	_, err := db.conn.Exec(`INSERT INTO runs
		(id, name, seed, days, hours, agents, sites, last_tick, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_tick = excluded.last_tick`,
		sim.RunID, sim.Name, sim.Entropy.Seed(),
		sim.Calendar.Days, sim.Calendar.Hours,
		sim.Population.Len(), sim.Roster.Len(),
		int64(sim.CurrentTick()), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", sim.RunID, err)
	}
	return nil
}

// SaveSites writes the run's site roster (full replace).
func (db *DB) SaveSites(runID string, roster *world.Roster) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sites WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO sites
		(run_id, activity, idx, capacity, transmission, occupied)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range roster.All() {
		if _, err := stmt.Exec(runID, s.Label, s.Ref.Index, s.Capacity, s.Transmission, s.Occupied); err != nil {
			return fmt.Errorf("insert site %s: %w", s, err)
		}
	}

	return tx.Commit()
}

// SaveCensus appends censuses for a run.
func (db *DB) SaveCensus(runID string, history []contagion.Census) error {
	if len(history) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO census
		(run_id, tick, ord, state, agents) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range history {
		for ord, n := range c.Counts {
			if _, err := stmt.Exec(runID, int64(c.Tick), ord, string(n.State), n.Agents); err != nil {
				return fmt.Errorf("insert census tick %d: %w", c.Tick, err)
			}
		}
	}

	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		metaJSON, _ := json.Marshal(e.Meta)
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category, meta_json) VALUES (?, ?, ?, ?, ?)",
			runID, int64(e.Tick), e.Description, e.Category, string(metaJSON),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair for a run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// SaveRunState writes the run header, the roster on first save, every
// census not yet written, and drains buffered events.
func (db *DB) SaveRunState(sim *engine.Simulation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	saved, seen := db.savedCensus[sim.RunID]
	history := sim.CensusHistory()
	events := sim.DrainEvents()

	if err := db.SaveRun(sim); err != nil {
		return err
	}
	if !seen {
		if err := db.SaveSites(sim.RunID, sim.Roster); err != nil {
			return fmt.Errorf("save sites: %w", err)
		}
	}
	if err := db.SaveCensus(sim.RunID, history[saved:]); err != nil {
		return fmt.Errorf("save census: %w", err)
	}
	if err := db.SaveEvents(sim.RunID, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	db.savedCensus[sim.RunID] = len(history)

	slog.Debug("run state saved", "run", sim.RunID, "tick", sim.CurrentTick(), "census", len(history)-saved, "events", len(events))
	return nil
}

// Runs lists stored runs, newest first.
func (db *DB) Runs() ([]RunRow, error) {
	var runs []RunRow
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY created_at DESC, id")
	return runs, err
}

// LatestRun returns the most recently created run.
func (db *DB) LatestRun() (RunRow, error) {
	var run RunRow
	err := db.conn.Get(&run, "SELECT * FROM runs ORDER BY created_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("no runs stored")
	}
	return run, err
}

// Sites returns the stored roster of a run.
func (db *DB) Sites(runID string) ([]SiteRow, error) {
	var sites []SiteRow
	err := db.conn.Select(&sites,
		"SELECT activity, idx, capacity, transmission, occupied FROM sites WHERE run_id = ? ORDER BY rowid",
		runID,
	)
	return sites, err
}

// LoadCensusHistory returns up to limit censuses with ticks in [from, to].
// A non-positive limit returns them all.
func (db *DB) LoadCensusHistory(runID string, from, to uint64, limit int) ([]contagion.Census, error) {
	if limit <= 0 {
		limit = -1
	}
	var rows []censusRow
	err := db.conn.Select(&rows, `
		SELECT tick, state, agents FROM census
		WHERE run_id = ? AND tick IN (
			SELECT DISTINCT tick FROM census
			WHERE run_id = ? AND tick BETWEEN ? AND ?
			ORDER BY tick LIMIT ?
		)
		ORDER BY tick, ord`,
		runID, runID, int64(from), int64(to), limit,
	)
	if err != nil {
		return nil, err
	}

	var out []contagion.Census
	for _, r := range rows {
		if len(out) == 0 || out[len(out)-1].Tick != uint64(r.Tick) {
			out = append(out, contagion.Census{Tick: uint64(r.Tick)})
		}
		last := &out[len(out)-1]
		last.Counts = append(last.Counts, contagion.Count{State: contagion.StateID(r.State), Agents: r.Agents})
	}
	return out, nil
}

// RecentEvents returns the most recent N events of a run.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}
