package lockx

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/llxisdsh/pb"
)

// CtxRWLock is a reader/writer lock built from a binary Gate, an atomic
// reader counter and a token registry, for callers that want
// context-aware (cancellable) waits. There is no native primitive with
// this shape, so the construction is:
//
//   - Readers take the gate only long enough to register: wait on the
//     gate, bump the reader counter, free the gate.
//   - A writer takes the gate and keeps it for its whole tenure; before
//     its token is minted it polls the reader counter until the already
//     admitted readers have drained.
//
// Because minting a reader token requires a pass through the gate, an
// outstanding writer excludes all new readers even though readers do
// not hold the gate during their critical section.
//
// Fairness caveat, by construction: each reader needs the gate only for
// an instant, so a continuous stream of readers can keep the counter
// nonzero and starve a writer that is already draining. Callers that
// need writer progress must throttle readers themselves.
type CtxRWLock struct {
	_       noCopy
	cfg     LockConfig
	gate    *Gate
	readers atomic.Int64

	// reg maps token ID to live token so that release can be driven by
	// ID alone and recover which variant it is undoing.
	reg pb.MapOf[uuid.UUID, *Token]
}

// NewCtxRWLock creates an unlocked CtxRWLock.
func NewCtxRWLock(opts ...func(*LockConfig)) *CtxRWLock {
	return &CtxRWLock{cfg: newLockConfig(opts...), gate: NewGate()}
}

// ReaderAccess takes a shared read claim, waiting as long as ctx
// allows. While bypass mode is active it returns an inert Bypass token
// immediately.
func (l *CtxRWLock) ReaderAccess(ctx context.Context) (*Token, error) {
	return l.readerAccess(ctx, 0)
}

// ReaderAccessTimeout is ReaderAccess with a wait budget (<= 0 means
// forever). Expiry surfaces ErrTimeout and leaves no state acquired.
func (l *CtxRWLock) ReaderAccessTimeout(ctx context.Context, timeout time.Duration) (*Token, error) {
	return l.readerAccess(ctx, timeout)
}

// WriterAccess takes the exclusive write claim, waiting as long as ctx
// allows. While bypass mode is active it returns an inert Bypass token
// immediately.
func (l *CtxRWLock) WriterAccess(ctx context.Context) (*Token, error) {
	return l.writerAccess(ctx, 0)
}

// WriterAccessTimeout is WriterAccess with a wait budget (<= 0 means
// forever). The budget covers both the gate wait and the reader drain;
// expiry surfaces ErrTimeout and leaves no state acquired.
func (l *CtxRWLock) WriterAccessTimeout(ctx context.Context, timeout time.Duration) (*Token, error) {
	return l.writerAccess(ctx, timeout)
}

// TryReaderAccess takes a read claim without waiting.
func (l *CtxRWLock) TryReaderAccess() (*Token, bool) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), true
	}
	if !l.gate.TryEnter() {
		return nil, false
	}
	l.readers.Add(1)
	l.gate.Leave()
	return l.mint(TokenReader), true
}

// TryWriterAccess takes the write claim without waiting. It fails if
// the gate is held or any reader is still active.
func (l *CtxRWLock) TryWriterAccess() (*Token, bool) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), true
	}
	if !l.gate.TryEnter() {
		return nil, false
	}
	if l.readers.Load() != 0 {
		l.gate.Leave()
		return nil, false
	}
	return l.mint(TokenWriter), true
}

// ActiveReaders returns the number of currently admitted readers.
func (l *CtxRWLock) ActiveReaders() int64 {
	return l.readers.Load()
}

// ReleaseID releases the live token with the given ID. Unknown or
// already released IDs are a no-op. This is the path Token.Release
// delegates to; it exists separately so that release calls can
// originate from code that only holds the identifier.
func (l *CtxRWLock) ReleaseID(id uuid.UUID) {
	t, ok := l.reg.LoadAndDelete(id)
	if !ok {
		return
	}
	// The registry removal is the one-shot arbiter for registered
	// tokens; the flag below only keeps Token.Released truthful.
	t.released.Store(true)
	l.cfg.releaseHook(t)
	switch t.kind {
	case TokenReader:
		l.readers.Add(-1)
	case TokenWriter:
		l.gate.Leave()
	}
}

func (l *CtxRWLock) readerAccess(ctx context.Context, timeout time.Duration) (*Token, error) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), nil
	}
	started := time.Now()
	if err := l.gate.enterTimeout(ctx, timeout); err != nil {
		return nil, err
	}
	// Register and immediately free the gate: readers hold it only
	// long enough to be counted.
	l.readers.Add(1)
	l.gate.Leave()
	l.cfg.observeWait("CtxRWLock.ReaderAccess", started)
	return l.mint(TokenReader), nil
}

func (l *CtxRWLock) writerAccess(ctx context.Context, timeout time.Duration) (*Token, error) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), nil
	}
	started := time.Now()
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := l.gate.Enter(waitCtx); err != nil {
		return nil, waitFailed(ctx)
	}
	if err := l.drain(waitCtx); err != nil {
		// An aborted drain must leave nothing acquired.
		l.gate.Leave()
		return nil, waitFailed(ctx)
	}
	// The gate stays held for the writer's whole tenure.
	l.cfg.observeWait("CtxRWLock.WriterAccess", started)
	return l.mint(TokenWriter), nil
}

// drain polls until every already admitted reader has released. New
// readers cannot appear here: registering one requires the gate, which
// the caller is holding.
func (l *CtxRWLock) drain(ctx context.Context) error {
	if l.readers.Load() == 0 {
		return nil
	}
	ticker := time.NewTicker(l.cfg.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.readers.Load() == 0 {
				return nil
			}
		}
	}
}

func (l *CtxRWLock) mint(kind TokenKind) *Token {
	t := newToken(kind, l)
	l.reg.Store(t.id, t)
	return t
}

func (l *CtxRWLock) release(t *Token) {
	if t.kind == TokenBypass {
		// Never registered, never touched the gate. Only the hook and
		// the one-shot flag apply.
		if t.released.CompareAndSwap(false, true) {
			l.cfg.releaseHook(t)
		}
		return
	}
	l.ReleaseID(t.id)
}
