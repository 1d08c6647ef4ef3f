// Package sqlite provides SQLite-backed persistence for the Shelfmark catalog.
//
// The package owns exactly one physical database connection. SQLite has no
// multi-writer engine, so concurrency is arbitrated in-process: many
// concurrent readers or a single exclusive writer, serialized by the
// Arbiter. All multi-table writes run through the transaction manager and
// the statement cache.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store provides SQLite-backed persistence for the Shelfmark catalog.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	arbiter *Arbiter
	stmts   *stmtCache
	txn     *txManager
}

var _ store.Catalog = (*Store)(nil)

// Open creates a SQLite store at the given path. It pins the pool to one
// physical connection, configures WAL mode and pragmas, and runs schema
// migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One physical connection; the Arbiter does the multiplexing.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	arbiter := NewArbiter()
	s := &Store{
		db:      db,
		logger:  logger,
		arbiter: arbiter,
		stmts:   newStmtCache(db),
		txn:     newTxManager(db, arbiter, logger),
	}
	return s, nil
}

// Close releases all cached statements, invalidates the lock arbiter so
// pending and future acquisitions fail closed, and closes the connection.
func (s *Store) Close() error {
	s.arbiter.Close()
	if err := s.stmts.Close(); err != nil {
		s.logger.Warn("closing statement cache", "error", err)
	}
	return s.db.Close()
}

// CommitCount returns the number of committed write transactions since the
// store was opened. Write commits are totally ordered, so the counter is
// strictly monotonic.
func (s *Store) CommitCount() int64 {
	return s.txn.CommitCount()
}

// formatTime formats a time.Time to RFC3339Nano UTC for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
