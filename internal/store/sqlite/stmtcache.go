package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

// stmtCache is the per-connection registry of named statements. The
// connection-level prepared form is compiled lazily on first use and never
// twice for the same name within one cache instance. The cache lock is only
// held for the map lookup and insert-if-absent; execution synchronizes on the
// individual statement instead.
type stmtCache struct {
	db *sql.DB

	mu     sync.RWMutex
	stmts  map[string]*Stmt
	closed bool
}

// Stmt is a cached named statement. Binding parameters and executing are not
// independently thread-safe on one statement instance, so each Stmt carries
// its own mutex and treats bind+execute as a single critical section.
//
// The compiled form cannot be produced while a transaction is open: the pool
// is pinned to one physical connection, and preparing against the pool while
// a transaction holds that connection would block forever. So compilation
// happens on first non-transactional use; inside a transaction an
// already-compiled statement is rebound to the transaction's connection via
// StmtContext (same connection, so the compiled form is reused), and a
// not-yet-compiled one runs as raw SQL.
type Stmt struct {
	mu    sync.Mutex
	name  string
	query string
	db    *sql.DB
	stmt  *sql.Stmt // compiled on first non-transactional use
}

func newStmtCache(db *sql.DB) *stmtCache {
	return &stmtCache{db: db, stmts: make(map[string]*Stmt)}
}

// Get returns the statement registered under name, registering it with query
// on first request.
func (c *stmtCache) Get(name, query string) (*Stmt, error) {
	c.mu.RLock()
	st, ok := c.stmts[name]
	closed := c.closed
	c.mu.RUnlock()
	if ok {
		return st, nil
	}
	if closed {
		return nil, store.ErrConnectionUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.stmts[name]; ok {
		return st, nil
	}
	if c.closed {
		return nil, store.ErrConnectionUnavailable
	}

	st = &Stmt{name: name, query: query, db: c.db}
	c.stmts[name] = st
	return st, nil
}

// Close releases every compiled statement. Later Get calls fail with
// ErrConnectionUnavailable.
func (c *stmtCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true

	var errs []error
	for name, st := range c.stmts {
		st.mu.Lock()
		if st.stmt != nil {
			if err := st.stmt.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
			st.stmt = nil
		}
		st.mu.Unlock()
	}
	c.stmts = make(map[string]*Stmt)
	return errors.Join(errs...)
}

// prepareLocked compiles the pooled prepared form on first use. Must be
// called with st.mu held and no transaction open, so the pool's connection is
// reachable.
func (st *Stmt) prepareLocked() error {
	if st.stmt != nil {
		return nil
	}
	prepared, err := st.db.Prepare(st.query)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", st.name, err)
	}
	st.stmt = prepared
	return nil
}

// Exec binds args and executes the statement as one critical section.
func (st *Stmt) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if tx := txFrom(ctx); tx != nil {
		if st.stmt != nil {
			return tx.tx.StmtContext(ctx, st.stmt).ExecContext(ctx, args...)
		}
		return tx.tx.ExecContext(ctx, st.query, args...)
	}
	if err := st.prepareLocked(); err != nil {
		return nil, err
	}
	return st.stmt.ExecContext(ctx, args...)
}

func (st *Stmt) queryRow(ctx context.Context, args ...any) (*sql.Row, error) {
	if tx := txFrom(ctx); tx != nil {
		if st.stmt != nil {
			return tx.tx.StmtContext(ctx, st.stmt).QueryRowContext(ctx, args...), nil
		}
		return tx.tx.QueryRowContext(ctx, st.query, args...), nil
	}
	if err := st.prepareLocked(); err != nil {
		return nil, err
	}
	return st.stmt.QueryRowContext(ctx, args...), nil
}

// QueryInt64 runs a single-value query. Zero rows yield (0, nil), matching
// the "0 means not found" convention of the id lookups built on it.
func (st *Stmt) QueryInt64(ctx context.Context, args ...any) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	row, err := st.queryRow(ctx, args...)
	if err != nil {
		return 0, err
	}
	var v int64
	err = row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", st.name, err)
	}
	return v, nil
}

// QueryString runs a single-value query. Zero rows yield ErrNotFound.
func (st *Stmt) QueryString(ctx context.Context, args ...any) (string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	row, err := st.queryRow(ctx, args...)
	if err != nil {
		return "", err
	}
	var v string
	err = row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query %s: %w", st.name, err)
	}
	return v, nil
}
