// Package journal persists fleet lifecycle history to SQLite so operators
// can reconstruct what the supervisor did to each unit and when.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Recorder is the journaling surface the supervisor writes through. A nil
// journal is replaced by Discard.
type Recorder interface {
	RecordTransition(unit string, from, to string, detail string) error
	RecordProbe(unit string, ready bool, latency time.Duration, detail string) error
	RecordEviction(unit string, port int, pid int32, cmdline string) error
}

// Event is one journaled row, newest first in Tail results.
type Event struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Unit      string    `json:"unit"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal implements Recorder on modernc.org/sqlite.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database and its schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	// WAL so admin API reads do not block supervisor writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: wal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		kind       TEXT NOT NULL,
		unit       TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transitions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		unit       TEXT NOT NULL,
		from_state TEXT NOT NULL DEFAULT '',
		to_state   TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_unit ON events(unit);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	CREATE INDEX IF NOT EXISTS idx_transitions_unit ON transitions(unit);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("journal: schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordTransition journals one unit state change.
func (j *Journal) RecordTransition(unit string, from, to string, detail string) error {
	if _, err := j.db.Exec(
		`INSERT INTO transitions (unit, from_state, to_state, detail) VALUES (?, ?, ?, ?)`,
		unit, from, to, detail,
	); err != nil {
		return fmt.Errorf("journal: transition: %w", err)
	}
	return j.recordEvent("transition", unit, fmt.Sprintf("%s -> %s: %s", from, to, detail))
}

// RecordProbe journals one readiness probe outcome.
func (j *Journal) RecordProbe(unit string, ready bool, latency time.Duration, detail string) error {
	return j.recordEvent("probe", unit,
		fmt.Sprintf("ready=%t latency=%s %s", ready, latency.Round(time.Millisecond), detail))
}

// RecordEviction journals one pre-launch port eviction.
func (j *Journal) RecordEviction(unit string, port int, pid int32, cmdline string) error {
	return j.recordEvent("eviction", unit,
		fmt.Sprintf("port=%d pid=%d cmdline=%s", port, pid, cmdline))
}

func (j *Journal) recordEvent(kind, unit, detail string) error {
	if _, err := j.db.Exec(
		`INSERT INTO events (kind, unit, detail) VALUES (?, ?, ?)`,
		kind, unit, detail,
	); err != nil {
		return fmt.Errorf("journal: event: %w", err)
	}
	return nil
}

// Tail returns the newest events, most recent first.
func (j *Journal) Tail(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, kind, unit, detail, created_at FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: tail: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Unit, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UnitHistory returns transitions for one unit, most recent first.
func (j *Journal) UnitHistory(unit string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, 'transition', unit, from_state || ' -> ' || to_state || ': ' || detail, created_at
		   FROM transitions WHERE unit = ? ORDER BY id DESC LIMIT ?`, unit, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.Unit, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Discard is a Recorder that drops everything, used when journaling is
// disabled.
type Discard struct{}

func (Discard) RecordTransition(string, string, string, string) error { return nil }
func (Discard) RecordProbe(string, bool, time.Duration, string) error { return nil }
func (Discard) RecordEviction(string, int, int32, string) error       { return nil }
