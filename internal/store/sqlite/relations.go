package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

// querier is either the single connection or the active transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the executor for ctx: the active transaction when one is
// carried, the plain connection otherwise.
func (s *Store) q(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx.tx
	}
	return s.db
}

// withShared runs fn under a shared lock, unless ctx already carries a
// transaction whose lock covers the reads.
func (s *Store) withShared(ctx context.Context, fn func(context.Context) error) error {
	if s.txn.InTransaction(ctx) {
		return fn(ctx)
	}
	lock, err := s.arbiter.AcquireShared()
	if err != nil {
		return err
	}
	defer func() {
		if relErr := s.arbiter.Release(lock); relErr != nil {
			s.logger.Warn("releasing shared lock", "error", relErr)
		}
	}()
	return fn(ctx)
}

// inWriteTx runs fn inside a write transaction: the caller's when ctx
// carries one, a fresh exclusive transaction otherwise. The same cascading
// code path can therefore run standalone or as part of a larger composite
// write.
func (s *Store) inWriteTx(ctx context.Context, fn func(context.Context) error) error {
	ctx, tx, err := s.txn.Begin(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := tx.End(); endErr != nil {
			s.logger.Error("ending write transaction", "error", endErr)
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	tx.SetSuccessful()
	return tx.End()
}

// linkOutcome tags the result of a link-row insert attempt.
type linkOutcome int

const (
	linkInserted linkOutcome = iota
	linkAlreadyPresent
	linkFailed
)

// tryInsertLink attempts one link-row insert and reports the outcome
// explicitly instead of letting callers fish constraint violations out of
// the error. A uniqueness violation means the link is already effectively
// present, which the relation writers treat as benign.
func (s *Store) tryInsertLink(ctx context.Context, ins *Stmt, args ...any) (linkOutcome, error) {
	_, err := ins.Exec(ctx, args...)
	switch {
	case err == nil:
		return linkInserted, nil
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return linkAlreadyPresent, nil
	default:
		return linkFailed, err
	}
}

// relation is the capability set parameterizing the ordered-relation replace
// algorithm for one relation kind. resolve performs the find-or-create
// lookup (and, for TOC entries, the update-if-resolved correction);
// insertArgs builds the link row at a given position.
type relation[T any] struct {
	kind string

	deleteName string
	deleteSQL  string
	insertName string
	insertSQL  string

	resolve    func(ctx context.Context, item *T) (int64, error)
	dedupeKey  func(item T, entityID int64) string
	insertArgs func(bookID, entityID int64, pos int, item T) []any
}

// replaceLinks rewrites all link rows of one relation kind for a book.
//
// Replace-all: every existing row is deleted, then the deduped incoming list
// is re-inserted with positions renumbered from 0. Reordering an existing
// list in place would trip the per-book position uniqueness, and replace
// leaves no stale gaps. Delete+reinsert must be atomic, so an active
// transaction is a hard precondition.
//
// Duplicates resolve to the first occurrence: repeated entries are dropped
// without advancing the position counter, so positions stay contiguous even
// when a benign uniqueness conflict skips an insert.
func replaceLinks[T any](ctx context.Context, s *Store, bookID int64, items []T, rel relation[T]) error {
	if _, err := s.txn.requireTx(ctx); err != nil {
		return err
	}

	del, err := s.stmts.Get(rel.deleteName, rel.deleteSQL)
	if err != nil {
		return err
	}
	if _, err := del.Exec(ctx, bookID); err != nil {
		return fmt.Errorf("clear %s links for book %d: %w", rel.kind, bookID, err)
	}

	if len(items) == 0 {
		return nil
	}

	ins, err := s.stmts.Get(rel.insertName, rel.insertSQL)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(items))
	pos := 0
	for i := range items {
		entityID, err := rel.resolve(ctx, &items[i])
		if err != nil {
			return store.NewWriteError(fmt.Sprintf("%s for book %d", rel.kind, bookID), err)
		}

		key := rel.dedupeKey(items[i], entityID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		outcome, insErr := s.tryInsertLink(ctx, ins, rel.insertArgs(bookID, entityID, pos, items[i])...)
		switch outcome {
		case linkInserted:
			pos++
		case linkAlreadyPresent:
			// Two payload entries converged on one entity past the dedupe
			// key (eg. a TOC rename collision). The link exists; carry on.
		case linkFailed:
			return store.NewWriteError(
				fmt.Sprintf("%s link %d for book %d", rel.kind, entityID, bookID), insErr)
		}
	}
	return nil
}
