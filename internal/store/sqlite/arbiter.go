package sqlite

import (
	"sync"
	"time"

	"github.com/shelfmarkapp/shelfmark-server/internal/store"
)

// Arbiter is a reentrant readers/writer lock arbitrating access to the
// single database connection. SQLite raises errors on write contention
// instead of queueing, so writes must take the exclusive lock up front while
// reads may share.
//
// A LockHandle identifies one logical holder (typically one transaction).
// Re-acquiring through the same handle is reference-counted and never
// blocks, so a holder can take the same or a weaker lock again without
// deadlocking. Handles from different goroutines block each other according
// to the usual readers/writer rules.
//
// Known limitation, kept from the design this replaces: waiters are woken in
// no particular order, so a steady stream of readers can starve a writer.
type Arbiter struct {
	mu       sync.Mutex
	released *sync.Cond

	shared    map[*LockHandle]int
	exclusive *LockHandle
	closed    bool
}

// LockHandle is the token returned by an acquisition. Every successful
// acquire must be paired with exactly one Release of the same handle.
type LockHandle struct {
	arb       *Arbiter
	exclusive bool
}

// NewArbiter creates an arbiter with no holders.
func NewArbiter() *Arbiter {
	a := &Arbiter{shared: make(map[*LockHandle]int)}
	a.released = sync.NewCond(&a.mu)
	return a
}

// Close invalidates the arbiter: pending waiters and all future
// acquisitions fail with ErrConnectionUnavailable. Locks already held may
// still be released.
func (a *Arbiter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.released.Broadcast()
}

// AcquireShared blocks until no exclusive lock is held, then registers a new
// shared holder.
func (a *Arbiter) AcquireShared() (*LockHandle, error) {
	return a.acquireShared(0)
}

// AcquireSharedTimeout is AcquireShared with a bounded wait. On expiry it
// returns ErrLockTimeout and the caller holds nothing.
func (a *Arbiter) AcquireSharedTimeout(timeout time.Duration) (*LockHandle, error) {
	return a.acquireShared(timeout)
}

func (a *Arbiter) acquireShared(timeout time.Duration) (*LockHandle, error) {
	deadline := deadlineFor(timeout)

	a.mu.Lock()
	defer a.mu.Unlock()

	h := &LockHandle{arb: a}
	for {
		if a.closed {
			return nil, store.ErrConnectionUnavailable
		}
		if a.exclusive == nil {
			a.shared[h] = 1
			return h, nil
		}
		if err := a.waitLocked(deadline); err != nil {
			return nil, err
		}
	}
}

// AcquireExclusive blocks until no other holder (shared or exclusive)
// remains, then becomes the sole holder.
func (a *Arbiter) AcquireExclusive() (*LockHandle, error) {
	return a.acquireExclusive(0)
}

// AcquireExclusiveTimeout is AcquireExclusive with a bounded wait.
func (a *Arbiter) AcquireExclusiveTimeout(timeout time.Duration) (*LockHandle, error) {
	return a.acquireExclusive(timeout)
}

func (a *Arbiter) acquireExclusive(timeout time.Duration) (*LockHandle, error) {
	deadline := deadlineFor(timeout)

	a.mu.Lock()
	defer a.mu.Unlock()

	h := &LockHandle{arb: a, exclusive: true}
	for {
		if a.closed {
			return nil, store.ErrConnectionUnavailable
		}
		if a.exclusive == nil && len(a.shared) == 0 {
			a.exclusive = h
			a.shared[h] = 1
			return h, nil
		}
		if err := a.waitLocked(deadline); err != nil {
			return nil, err
		}
	}
}

// Acquire re-acquires through an already-held handle. The holder is already
// compatible with itself, so this never blocks; it increments the handle's
// reference count. Each Acquire needs a matching Release.
func (h *LockHandle) Acquire() error {
	a := h.arb
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, held := a.shared[h]; !held {
		return store.ErrLockNotHeld
	}
	a.shared[h]++
	return nil
}

// Release drops one reference on the handle. When the count reaches zero the
// holder is removed and waiters are woken. Releasing a handle that is no
// longer held is an error, never a silent no-op.
func (a *Arbiter) Release(h *LockHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	count, held := a.shared[h]
	if !held {
		return store.ErrLockNotHeld
	}
	if count > 1 {
		a.shared[h] = count - 1
		return nil
	}

	delete(a.shared, h)
	if a.exclusive == h {
		a.exclusive = nil
	}
	a.released.Broadcast()
	return nil
}

// waitLocked waits for a release signal, bounded by deadline when non-zero.
// Must be called with a.mu held.
func (a *Arbiter) waitLocked(deadline time.Time) error {
	if deadline.IsZero() {
		a.released.Wait()
		return nil
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return store.ErrLockTimeout
	}

	// Cond has no timed wait; arrange a wake-up at the deadline and let the
	// acquire loop re-check.
	timer := time.AfterFunc(remaining, func() {
		a.mu.Lock()
		a.released.Broadcast()
		a.mu.Unlock()
	})
	a.released.Wait()
	timer.Stop()
	return nil
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
