// Package store indexes classified findings in SQLite so they can be
// searched across sessions. The index lives in memory unless an explicit
// path is configured; session state itself is never persisted.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkonda/probemux/internal/protocol"
)

// Store holds the SQLite connection for the findings index
type Store struct {
	conn *sql.DB
	// pin holds one connection open for the store's lifetime when the
	// index is in memory; the shared in-memory database is destroyed the
	// moment its last connection closes.
	pin *sql.Conn
}

// SessionRecord summarizes one supervised session in the index
type SessionRecord struct {
	ID          string     `json:"id"`
	Client      string     `json:"client"`
	Argv        []string   `json:"argv"`
	ProcessID   int        `json:"process_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExitCode    *int       `json:"exit_code,omitempty"`
}

// FindingRecord is one indexed finding with its session attribution
type FindingRecord struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Client     string    `json:"client"`
	FoundAt    string    `json:"found_at"`
	Plugin     string    `json:"plugin"`
	Target     string    `json:"target,omitempty"`
	Data       string    `json:"data"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FindingQuery describes a findings search. Zero values mean "no filter".
type FindingQuery struct {
	SessionID string
	Client    string
	Plugin    string
	Target    string
	Data      string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Open creates the findings index. An empty path keeps the index in a
// shared in-memory database for the lifetime of the process.
func Open(path string) (*Store, error) {
	dsn := "file:probemux?mode=memory&cache=shared"
	if path != "" {
		dsn = path + "?_journal=WAL&_timeout=5000&_fk=1"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open findings index: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	s := &Store{conn: conn}
	if path == "" {
		pin, err := conn.Conn(context.Background())
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to pin in-memory index: %w", err)
		}
		s.pin = pin
	}

	if err := s.createTables(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// createTables bootstraps the schema
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		client TEXT NOT NULL,
		argv TEXT NOT NULL,
		process_id INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		exit_code INTEGER
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		client TEXT NOT NULL,
		found_at TEXT NOT NULL,
		plugin TEXT NOT NULL,
		target TEXT,
		data TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_findings_session ON findings(session_id);
	CREATE INDEX IF NOT EXISTS idx_findings_plugin ON findings(plugin);
	CREATE INDEX IF NOT EXISTS idx_findings_recorded ON findings(recorded_at);
	`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the index
func (s *Store) Close() error {
	if s.pin != nil {
		s.pin.Close()
	}
	return s.conn.Close()
}

// HealthCheck verifies the connection is usable
func (s *Store) HealthCheck() error {
	return s.conn.Ping()
}

// RecordSession registers a newly spawned session
func (s *Store) RecordSession(id, client string, argv []string, processID int, startedAt time.Time) error {
	argvJSON, err := json.Marshal(argv)
	if err != nil {
		return fmt.Errorf("failed to encode argv: %w", err)
	}

	_, err = s.conn.Exec(
		`INSERT INTO sessions (id, client, argv, process_id, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, client, string(argvJSON), processID, startedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// MarkCompleted stamps a session's terminal exit state
func (s *Store) MarkCompleted(id string, exitCode int, completedAt time.Time) error {
	_, err := s.conn.Exec(
		`UPDATE sessions SET completed_at = ?, exit_code = ? WHERE id = ?`,
		completedAt, exitCode, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark session completed: %w", err)
	}
	return nil
}

// GetSession returns one indexed session summary
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	row := s.conn.QueryRow(
		`SELECT id, client, argv, process_id, started_at, completed_at, exit_code FROM sessions WHERE id = ?`,
		id,
	)

	var rec SessionRecord
	var argvJSON string
	if err := row.Scan(&rec.ID, &rec.Client, &argvJSON, &rec.ProcessID, &rec.StartedAt, &rec.CompletedAt, &rec.ExitCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := json.Unmarshal([]byte(argvJSON), &rec.Argv); err != nil {
		return nil, fmt.Errorf("failed to decode argv: %w", err)
	}

	return &rec, nil
}

// RecordFinding indexes one classified finding
func (s *Store) RecordFinding(sessionID, client string, f protocol.Finding) error {
	_, err := s.conn.Exec(
		`INSERT INTO findings (session_id, client, found_at, plugin, target, data, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, client, f.FoundAt, f.Plugin, f.Target, f.Data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record finding: %w", err)
	}
	return nil
}

// SearchFindings returns findings matching the query, newest first
func (s *Store) SearchFindings(q FindingQuery) ([]FindingRecord, error) {
	query := `SELECT id, session_id, client, found_at, plugin, target, data, recorded_at FROM findings WHERE 1=1`
	var args []any

	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	if q.Client != "" {
		query += " AND client = ?"
		args = append(args, q.Client)
	}
	if q.Plugin != "" {
		query += " AND plugin = ?"
		args = append(args, q.Plugin)
	}
	if q.Target != "" {
		query += " AND target LIKE ?"
		args = append(args, "%"+q.Target+"%")
	}
	if q.Data != "" {
		query += " AND data LIKE ?"
		args = append(args, "%"+q.Data+"%")
	}
	if !q.Since.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, q.Since)
	}
	if !q.Until.IsZero() {
		query += " AND recorded_at <= ?"
		args = append(args, q.Until)
	}

	query += " ORDER BY recorded_at DESC, id DESC"

	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search findings: %w", err)
	}
	defer rows.Close()

	var findings []FindingRecord
	for rows.Next() {
		var rec FindingRecord
		var target sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Client, &rec.FoundAt, &rec.Plugin, &target, &rec.Data, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		rec.Target = target.String
		findings = append(findings, rec)
	}

	return findings, rows.Err()
}

// CountFindings returns the number of indexed findings for a session, or
// all findings when sessionID is empty
func (s *Store) CountFindings(sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM findings`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}

	var count int
	if err := s.conn.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count findings: %w", err)
	}
	return count, nil
}

// String renders the active filters for logging
func (q FindingQuery) String() string {
	var parts []string
	if q.SessionID != "" {
		parts = append(parts, "session="+q.SessionID)
	}
	if q.Client != "" {
		parts = append(parts, "client="+q.Client)
	}
	if q.Plugin != "" {
		parts = append(parts, "plugin="+q.Plugin)
	}
	if q.Target != "" {
		parts = append(parts, "target~"+q.Target)
	}
	if q.Data != "" {
		parts = append(parts, "data~"+q.Data)
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}
