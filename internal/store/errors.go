// Package store defines the persistence interface and error taxonomy for the
// Shelfmark catalog.
package store

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the data-access layer.
var (
	// ErrNotFound reports that the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConnectionUnavailable reports that the underlying database
	// connection is closed or unusable. Lock acquisition fails closed with
	// this error instead of silently granting access.
	ErrConnectionUnavailable = errors.New("database connection unavailable")

	// ErrLockTimeout reports that a bounded lock wait expired before the
	// lock could be granted. The caller holds nothing afterwards.
	ErrLockTimeout = errors.New("timed out waiting for database lock")

	// ErrTransactionRequired reports a programming error: a cascading
	// writer was invoked without an active transaction.
	ErrTransactionRequired = errors.New("operation requires an active transaction")

	// ErrTransactionOpen reports a programming error: an operation that
	// must run outside any transaction (such as the search index rebuild,
	// which renames a table) was invoked inside one.
	ErrTransactionOpen = errors.New("operation must run outside a transaction")

	// ErrLockNotHeld reports a release of a lock handle that is no longer
	// held. Each handle may be released exactly once per acquisition.
	ErrLockNotHeld = errors.New("database lock not held")
)

// WriteError is the fatal failure of a composite book write. The transaction
// is rolled back in full; Record describes the offending payload. Callers
// must not retry automatically.
type WriteError struct {
	Record string
	Err    error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("write %s: %v", e.Record, e.Err)
	}
	return fmt.Sprintf("write %s failed", e.Record)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewWriteError builds a WriteError for the given record description.
func NewWriteError(record string, err error) *WriteError {
	return &WriteError{Record: record, Err: err}
}
