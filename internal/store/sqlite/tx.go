package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

// txManager wraps the connection's begin/commit/rollback behind the lock
// arbiter. The underlying store supports only one transaction level, so a
// Begin inside an active transaction returns a participating token instead
// of nesting.
//
// The active transaction travels in the context. That replaces the
// thread-identity check of a per-thread design: a call chain is "inside" a
// transaction exactly when its context carries the token.
type txManager struct {
	db      *sql.DB
	arbiter *Arbiter
	logger  *slog.Logger
	commits atomic.Int64
}

// Tx is a transaction token. Rollback is the default: End commits only when
// SetSuccessful was called first, so no abnormal exit can silently commit
// partial work. A participating token owns nothing; the outermost token
// decides commit or rollback.
type Tx struct {
	tx            *sql.Tx
	lock          *LockHandle
	mgr           *txManager
	participating bool
	successful    bool
	done          bool
}

type txCtxKey struct{}

func newTxManager(db *sql.DB, arbiter *Arbiter, logger *slog.Logger) *txManager {
	return &txManager{db: db, arbiter: arbiter, logger: logger}
}

// txFrom returns the active transaction carried by ctx, or nil.
func txFrom(ctx context.Context) *Tx {
	tx, _ := ctx.Value(txCtxKey{}).(*Tx)
	return tx
}

// InTransaction reports whether ctx carries an active transaction.
func (m *txManager) InTransaction(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// Begin starts a transaction, or joins the one already active on ctx.
//
// A fresh transaction acquires the exclusive lock (forWriting) or a shared
// lock from the arbiter before BEGIN, and the returned context carries the
// token so nested writers participate instead of nesting. When joining, the
// lock already held for the enclosing transaction covers this request, so
// no further arbitration happens.
func (m *txManager) Begin(ctx context.Context, forWriting bool) (context.Context, *Tx, error) {
	if cur := txFrom(ctx); cur != nil {
		return ctx, &Tx{tx: cur.tx, mgr: m, participating: true}, nil
	}

	var (
		lock *LockHandle
		err  error
	)
	if forWriting {
		lock, err = m.arbiter.AcquireExclusive()
	} else {
		lock, err = m.arbiter.AcquireShared()
	}
	if err != nil {
		return ctx, nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		if relErr := m.arbiter.Release(lock); relErr != nil {
			m.logger.Warn("releasing lock after failed begin", "error", relErr)
		}
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	t := &Tx{tx: tx, lock: lock, mgr: m}
	return context.WithValue(ctx, txCtxKey{}, t), t, nil
}

// SetSuccessful marks the token so that End commits. Has no effect on a
// participating token: only the outermost transaction owner decides.
func (t *Tx) SetSuccessful() {
	if !t.participating {
		t.successful = true
	}
}

// End finishes the transaction: commit when marked successful, rollback
// otherwise. Safe to defer alongside an explicit call on the success path;
// only the first End acts. Participating tokens are a no-op.
func (t *Tx) End() error {
	if t.participating || t.done {
		return nil
	}
	t.done = true

	defer func() {
		if err := t.mgr.arbiter.Release(t.lock); err != nil {
			t.mgr.logger.Warn("releasing transaction lock", "error", err)
		}
	}()

	if t.successful {
		if err := t.tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		t.mgr.commits.Add(1)
		return nil
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// CommitCount returns the number of committed transactions.
func (m *txManager) CommitCount() int64 {
	return m.commits.Load()
}

// requireTx returns the active transaction or ErrTransactionRequired.
// Cascading link-table writers call this first: running one outside a
// transaction is a programming error, not something to paper over.
func (m *txManager) requireTx(ctx context.Context) (*Tx, error) {
	tx := txFrom(ctx)
	if tx == nil {
		return nil, store.ErrTransactionRequired
	}
	return tx, nil
}
