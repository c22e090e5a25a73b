package lockx

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate is a context-aware binary exclusion gate: at most one holder at
// any instant. It is the single source of mutual exclusion for the lock
// types in this package, and is also usable standalone.
//
// State:
//   - Free: Enter returns immediately.
//   - Held: Enter blocks until the holder calls Leave.
//
// Each lock owns its gate exclusively; a Gate is per-instance state and
// is never shared between locks.
type Gate struct {
	_   noCopy
	sem *semaphore.Weighted
}

// NewGate creates a free Gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Enter waits until the gate is free and takes it. It returns an error
// only when ctx is done first, in which case the gate is not taken.
func (g *Gate) Enter(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return waitFailed(ctx)
	}
	return nil
}

// enterTimeout is Enter with an additional wait budget. A timeout <= 0
// means wait forever (subject to ctx). Expiry of the budget surfaces
// ErrTimeout; ctx being done surfaces the wrapped ctx error.
func (g *Gate) enterTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		return g.Enter(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		return waitFailed(ctx)
	}
	return nil
}

// TryEnter takes the gate without waiting. Returns true on success.
func (g *Gate) TryEnter() bool {
	return g.sem.TryAcquire(1)
}

// Leave frees the gate. It must be called exactly once per successful
// Enter/TryEnter.
func (g *Gate) Leave() {
	g.sem.Release(1)
}
