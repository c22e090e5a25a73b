package lockx

import (
	"context"
	"sync/atomic"
	"time"
)

// ReentrantLock is an exclusive lock that may be re-entered by the
// logical call chain that already holds it.
//
// The call chain is identified by the context chain: a successful
// acquisition returns a derived context, and any acquisition made
// through that context (or a context derived from it) is reentrant and
// does not touch the gate. Sibling goroutines handed the base context
// are independent flows and exclude each other as usual. Because the
// context rides along plain function calls and channel handoffs, two
// sequential continuations of one chain count as the same holder even
// when they run on different goroutines.
//
// The gate is released once the outermost of N nested acquisitions has
// released its token; the nested tokens may be released in any order.
type ReentrantLock struct {
	_    noCopy
	gate *Gate
	cfg  LockConfig
}

// flowKey is the per-instance ambient slot key. Carrying the lock
// pointer keeps slots of nested, distinct ReentrantLocks from
// shadowing one another in the same context chain.
type flowKey struct {
	l *ReentrantLock
}

// flowHolder is the nesting record of one owning call chain. refs
// counts live tokens; 0 means the chain has fully released and the
// record is stale (a reused context falls through to the slow path).
type flowHolder struct {
	refs atomic.Int64
}

// NewReentrantLock creates an unlocked ReentrantLock.
func NewReentrantLock(opts ...func(*LockConfig)) *ReentrantLock {
	return &ReentrantLock{gate: NewGate(), cfg: newLockConfig(opts...)}
}

// Acquire takes the lock, waiting as long as ctx allows. On success it
// returns a derived context that callers must thread through the work
// done under the lock, and a token whose release gives the lock back.
func (l *ReentrantLock) Acquire(ctx context.Context) (context.Context, *Token, error) {
	return l.acquire(ctx, 0)
}

// AcquireTimeout is Acquire with a wait budget. A timeout <= 0 waits
// forever. On expiry it returns ErrTimeout and leaves the ambient flow
// state untouched.
func (l *ReentrantLock) AcquireTimeout(ctx context.Context, timeout time.Duration) (context.Context, *Token, error) {
	return l.acquire(ctx, timeout)
}

// TryAcquire takes the lock without waiting. The bool reports success.
// Reentrant acquisition always succeeds.
func (l *ReentrantLock) TryAcquire(ctx context.Context) (context.Context, *Token, bool) {
	if t := l.reenter(ctx); t != nil {
		return ctx, t, true
	}
	if !l.gate.TryEnter() {
		return ctx, nil, false
	}
	ctx2, t := l.enter(ctx)
	return ctx2, t, true
}

// Held reports whether the flow of ctx currently owns the lock.
func (l *ReentrantLock) Held(ctx context.Context) bool {
	h, ok := ctx.Value(flowKey{l}).(*flowHolder)
	return ok && h.refs.Load() > 0
}

func (l *ReentrantLock) acquire(ctx context.Context, timeout time.Duration) (context.Context, *Token, error) {
	if t := l.reenter(ctx); t != nil {
		return ctx, t, nil
	}
	started := time.Now()
	if err := l.gate.enterTimeout(ctx, timeout); err != nil {
		return ctx, nil, err
	}
	l.cfg.observeWait("ReentrantLock.Acquire", started)
	ctx2, t := l.enter(ctx)
	return ctx2, t, nil
}

// reenter attempts the reentrant fast path: if the context chain
// already owns this lock, bump the nesting count and mint a token
// without touching the gate.
func (l *ReentrantLock) reenter(ctx context.Context) *Token {
	h, ok := ctx.Value(flowKey{l}).(*flowHolder)
	if !ok {
		return nil
	}
	for {
		n := h.refs.Load()
		if n == 0 {
			// Stale record: the chain released everything and the
			// caller reused the old context. Not a holder anymore.
			return nil
		}
		if h.refs.CompareAndSwap(n, n+1) {
			t := newToken(TokenExclusive, l)
			t.flow = h
			return t
		}
	}
}

// enter installs a fresh nesting record after the gate was taken.
func (l *ReentrantLock) enter(ctx context.Context) (context.Context, *Token) {
	h := &flowHolder{}
	h.refs.Store(1)
	t := newToken(TokenExclusive, l)
	t.flow = h
	return context.WithValue(ctx, flowKey{l}, h), t
}

func (l *ReentrantLock) release(t *Token) {
	if !t.released.CompareAndSwap(false, true) {
		return
	}
	l.cfg.releaseHook(t)
	if t.flow.refs.Add(-1) == 0 {
		// Outermost release of this chain; the stale record now
		// fails the fast path and the gate opens for other flows.
		l.gate.Leave()
	}
}
