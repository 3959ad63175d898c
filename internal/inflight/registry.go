// Package inflight tracks computations in progress so that concurrent
// requests for the same computation key share one execution. State is
// process-lifetime only: a restart loses it, which is safe because entry
// writes are append-only and replaying a computation is idempotent.
package inflight

import (
	"context"
	"fmt"
	"sync"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// Outcome is the terminal result of one computation, delivered identically
// to every waiter. Either Entries is populated or Err is set.
type Outcome struct {
	// Entries are the rows persisted by the computation.
	Entries []entry.Entry

	// Err is the computation failure, if any. Failed outcomes are never
	// persisted; the key returns to absent and the next request retries.
	Err error
}

// Flight is a computation in progress. Followers hold a reference and await
// the outcome; the reference stays valid after the key has been removed from
// the registry, so a resolved flight can never drop a waiter.
type Flight struct {
	done    chan struct{}
	outcome Outcome
}

// Wait blocks until the flight resolves or ctx is done. A ctx error abandons
// the wait only; the computation itself keeps running for the benefit of
// other waiters.
func (f *Flight) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("await outcome: %w", ctx.Err())
	}
}

// Outcome returns the outcome without blocking. ok is false while the
// flight is unresolved.
func (f *Flight) Outcome() (Outcome, bool) {
	select {
	case <-f.done:
		return f.outcome, true
	default:
		return Outcome{}, false
	}
}

// Registry is the process-wide map of in-flight computations. All mutations
// happen under one mutex: the critical sections are a map access plus a
// channel close, short enough that a global lock outperforms anything
// fancier at this request volume.
type Registry struct {
	mu      sync.Mutex
	flights map[entry.Key]*Flight
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		flights: make(map[entry.Key]*Flight),
	}
}

// TryBegin atomically claims leadership of key or joins the existing flight.
// The returned bool is true for the leader, who must eventually call Resolve
// exactly once. Check-then-insert races are impossible: the lookup and the
// insert happen under the same lock acquisition.
func (r *Registry) TryBegin(key entry.Key) (*Flight, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.flights[key]; ok {
		return f, false
	}

	f := &Flight{done: make(chan struct{})}
	r.flights[key] = f

	return f, true
}

// Resolve records the outcome, wakes every waiter, and removes the key, all
// in one critical section. A TryBegin arriving after removal starts a fresh
// computation; one arriving before removal received the flight pointer and
// observes the outcome through it. There is no window in which a waiter can
// be attached and never woken.
//
// Calling Resolve for a key with no active flight is a no-op so that a
// belated resolution (e.g. after a timed-out leader was superseded) cannot
// panic the process.
func (r *Registry) Resolve(key entry.Key, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[key]
	if !ok {
		return
	}

	f.outcome = outcome
	close(f.done)
	delete(r.flights, key)
}

// Len returns the number of active flights.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.flights)
}
