package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// DefaultDSN keeps the journal in memory.
const DefaultDSN = ":memory:"

// Journal is a SQLite-backed log of sessions, batches and reports.
type Journal struct {
	db     *sql.DB
	clock  Sequencer
	logger *slog.Logger
}

// Sequencer hands out row seqs. *Clock is the default implementation.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger used when a diagnostic cannot be stored.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithClock replaces the clock that resumes after the stored rows. The
// caller must make sure it never hands out a seq already in use.
func WithClock(clock Sequencer) Option {
	return func(j *Journal) {
		j.clock = clock
	}
}

// Open creates or opens the journal at dsn. An empty dsn means DefaultDSN.
//
// The database is configured with WAL mode, NORMAL synchronous mode, a
// five second busy timeout and foreign keys. Unless WithClock is given,
// the clock resumes after the highest seq already stored.
func Open(dsn string, opts ...Option) (*Journal, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// only exists on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	last, err := maxSeq(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db}
	for _, opt := range opts {
		opt(j)
	}
	if j.clock == nil {
		j.clock = NewClockAt(last)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Seq returns the last seq written.
func (j *Journal) Seq() int64 {
	return j.clock.Current()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func maxSeq(db *sql.DB) (int64, error) {
	var seq int64
	err := db.QueryRow(`
		SELECT MAX(seq) FROM (
			SELECT COALESCE(MAX(seq), 0) AS seq FROM sessions
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM batches
			UNION ALL SELECT COALESCE(MAX(seq), 0) FROM reports
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq, nil
}

// verifyPragma checks a pragma value. Used by tests.
func (j *Journal) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := j.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
