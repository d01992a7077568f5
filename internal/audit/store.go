// Package audit records the orchestrator's decision trail: applied and
// rejected transitions, boundary denials, and recovery runs. Backed by
// SQLite so the trail survives process restarts and stays queryable.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Event kinds.
const (
	KindTransition     = "transition"
	KindBoundaryDenial = "boundary_denial"
	KindRecovery       = "recovery"
)

// Event is one audit trail entry.
type Event struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	SprintID  string `json:"sprint_id,omitempty"`
	Action    string `json:"action,omitempty"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Path      string `json:"path,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Stats holds aggregate audit counts.
type Stats struct {
	Total       int `json:"total"`
	Transitions int `json:"transitions"`
	Denials     int `json:"denials"`
	Recoveries  int `json:"recoveries"`
}

// Store is the audit trail backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the audit database in dataDir, enables WAL
// mode, and runs migrations.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "audit.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("audit: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("audit: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			kind       TEXT NOT NULL,
			sprint_id  TEXT,
			action     TEXT,
			decision   TEXT NOT NULL,
			reason     TEXT,
			path       TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_events_kind    ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_sprint  ON events(sprint_id);
		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Log appends one event and returns its row id.
func (s *Store) Log(e Event) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO events (kind, sprint_id, action, decision, reason, path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Kind, e.SprintID, e.Action, e.Decision, e.Reason, e.Path,
	)
	if err != nil {
		return 0, fmt.Errorf("audit: log event: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest events, optionally filtered by kind and
// sprint id.
func (s *Store) Recent(kind, sprintID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, kind, ifnull(sprint_id, ''), ifnull(action, ''), decision,
	                 ifnull(reason, ''), ifnull(path, ''), created_at
	          FROM events WHERE 1=1`
	args := []any{}

	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	if sprintID != "" {
		query += " AND sprint_id = ?"
		args = append(args, sprintID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Kind, &e.SprintID, &e.Action, &e.Decision, &e.Reason, &e.Path, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats returns aggregate counts per event kind.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{}
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&stats.Total)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE kind = ?`, KindTransition).Scan(&stats.Transitions)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE kind = ?`, KindBoundaryDenial).Scan(&stats.Denials)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE kind = ?`, KindRecovery).Scan(&stats.Recoveries)
	return stats, nil
}

// RecordDenial satisfies the boundary guard's recorder interface.
// Best-effort: an audit write failure must never turn an enforcement
// decision into a crash.
func (s *Store) RecordDenial(sprintID, path, reason string) {
	if s == nil {
		return
	}
	if _, err := s.Log(Event{
		Kind:     KindBoundaryDenial,
		SprintID: sprintID,
		Decision: "denied",
		Reason:   reason,
		Path:     path,
	}); err != nil {
		log.Printf("audit: recording boundary denial: %v", err)
	}
}

// RecordTransition satisfies the lifecycle machine's recorder
// interface. Same best-effort contract as RecordDenial.
func (s *Store) RecordTransition(sprintID, action, status, reason string) {
	if s == nil {
		return
	}
	if _, err := s.Log(Event{
		Kind:     KindTransition,
		SprintID: sprintID,
		Action:   action,
		Decision: status,
		Reason:   reason,
	}); err != nil {
		log.Printf("audit: recording transition: %v", err)
	}
}
