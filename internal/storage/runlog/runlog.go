// Package runlog keeps a history of measurement runs in a SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

var (
	// ErrClosed indicates use of a log after Close.
	ErrClosed = errors.New("run log is closed")

	// ErrInvalidConfig indicates bad open parameters.
	ErrInvalidConfig = errors.New("invalid run log configuration")
)

// Config holds configuration for a run log.
type Config struct {
	Path        string
	JournalMode string        // SQLite journal_mode pragma
	Synchronous string        // SQLite synchronous pragma
	Timeout     time.Duration // per-statement timeout
}

// DefaultConfig returns a configuration for the database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		JournalMode: "wal",
		Synchronous: "normal",
		Timeout:     10 * time.Second,
	}
}

var (
	journalModes = map[string]bool{"delete": true, "truncate": true, "persist": true, "memory": true, "wal": true, "off": true}
	syncModes    = map[string]bool{"off": true, "normal": true, "full": true, "extra": true}
)

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if !journalModes[strings.ToLower(c.JournalMode)] {
		return fmt.Errorf("%w: journal mode %q", ErrInvalidConfig, c.JournalMode)
	}
	if !syncModes[strings.ToLower(c.Synchronous)] {
		return fmt.Errorf("%w: synchronous %q", ErrInvalidConfig, c.Synchronous)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Entry is one recorded backend pass.
type Entry struct {
	ID        int64
	Started   time.Time
	Input     string
	Records   int
	Windows   int
	Backend   string
	Bulk      bool
	Repeat    int
	Processed int
	Requeued  int
	Retired   int
	Elapsed   time.Duration
}

// Log is an open run history.
type Log struct {
	db  *sql.DB
	cfg Config
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	started    INTEGER NOT NULL,
	input      TEXT    NOT NULL,
	records    INTEGER NOT NULL,
	windows    INTEGER NOT NULL,
	backend    TEXT    NOT NULL,
	bulk       INTEGER NOT NULL,
	repeat     INTEGER NOT NULL,
	processed  INTEGER NOT NULL,
	requeued   INTEGER NOT NULL,
	retired    INTEGER NOT NULL,
	elapsed_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_backend ON runs (backend);
`

// Open opens the database at cfg.Path, creating the schema if needed.
func Open(ctx context.Context, cfg Config) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode = " + strings.ToLower(cfg.JournalMode),
		"PRAGMA synchronous = " + strings.ToLower(cfg.Synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Log{db: db, cfg: cfg}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	if err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}
	return nil
}

// Insert records entries in one transaction and fills in their IDs.
func (l *Log) Insert(ctx context.Context, entries []Entry) error {
	if l.db == nil {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (started, input, records, windows, backend, bulk, repeat,
		                  processed, requeued, retired, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		res, err := stmt.ExecContext(ctx,
			e.Started.UnixNano(), e.Input, e.Records, e.Windows, e.Backend, e.Bulk, e.Repeat,
			e.Processed, e.Requeued, e.Retired, e.Elapsed.Nanoseconds())
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read run id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit runs: %w", err)
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	Backend string // empty matches every backend
	Limit   int    // 0 means no limit
}

// List returns recorded runs, newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]Entry, error) {
	if l.db == nil {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	query := `SELECT id, started, input, records, windows, backend, bulk, repeat,
	                 processed, requeued, retired, elapsed_ns
	          FROM runs`
	var args []any
	if f.Backend != "" {
		query += " WHERE backend = ?"
		args = append(args, f.Backend)
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var started, elapsed int64
		if err := rows.Scan(&e.ID, &started, &e.Input, &e.Records, &e.Windows, &e.Backend, &e.Bulk,
			&e.Repeat, &e.Processed, &e.Requeued, &e.Retired, &elapsed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.Started = time.Unix(0, started)
		e.Elapsed = time.Duration(elapsed)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return out, nil
}
