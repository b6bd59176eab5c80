// Package eventlog records daemon lifecycle and request events in SQLite.
// The daemon never logs to its stdio (stdin and stdout carry the wire
// protocol), so the event log is the primary observability surface; the
// `statusd logs` command reads it through Reader.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// SchemaDDL creates the events table. Idempotent.
const SchemaDDL = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	type       TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	dir        TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

// Event types written by the daemon.
const (
	TypeDaemonStart      = "daemon_start"
	TypeRequestReceived  = "request_received"
	TypeRequestEmitted   = "request_emitted"
	TypeRequestAbandoned = "request_abandoned"
	TypeFramingError     = "framing_error"
)

// Log is the write side of the event log. One daemon process owns one Log;
// each run gets a fresh session id so overlapping histories in the same
// database file stay distinguishable.
type Log struct {
	db      *sql.DB
	session string
}

// Open opens (creating if needed) the event database at dbPath in WAL mode
// and initializes the schema.
func Open(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(SchemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Log{db: db, session: uuid.New().String()}, nil
}

// Session returns this daemon run's session id.
func (l *Log) Session() string { return l.session }

// Record writes one event. Errors are returned for the caller to log or
// ignore; the daemon treats event-log failures as non-fatal.
func (l *Log) Record(ctx context.Context, typ, requestID, dir, detail string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO events (session_id, type, request_id, dir, detail) VALUES (?, ?, ?, ?, ?)`,
		l.session, typ, requestID, dir, detail,
	)
	if err != nil {
		return fmt.Errorf("record event %s: %w", typ, err)
	}
	return nil
}

// Close releases the database connection.
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// DefaultDBPath returns the default event database path under $HOME.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".statusd", "statusd.db")
}
