package lockx

import (
	"sync"
	"time"

	"github.com/petermattis/goid"
)

// RWLock is a blocking reader/writer lock: multiple concurrent readers,
// one writer excluding everything else. Waits run on the calling
// goroutine and are bounded by a timeout.
//
// The lock is non-recursive and fails fast: a goroutine that already
// holds any claim gets ErrRecursion instead of deadlocking when it asks
// for another one. Goroutine identity is the ownership scope here (the
// blocking analogue of the call-chain scope of ReentrantLock). Release
// itself may happen from any goroutine holding the token.
type RWLock struct {
	_   noCopy
	cfg LockConfig
	mu  sync.RWMutex

	// ownerMu guards the claim-owner bookkeeping below, which exists
	// only to detect recursion.
	ownerMu   sync.Mutex
	writerID  int64
	readerIDs map[int64]struct{}
}

// NewRWLock creates an unlocked RWLock.
func NewRWLock(opts ...func(*LockConfig)) *RWLock {
	return &RWLock{
		cfg:       newLockConfig(opts...),
		readerIDs: make(map[int64]struct{}),
	}
}

// ReaderAccess takes a shared read claim, waiting up to timeout
// (<= 0 means forever). While bypass mode is active it returns an
// inert Bypass token immediately.
func (l *RWLock) ReaderAccess(timeout time.Duration) (*Token, error) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), nil
	}
	gid := goid.Get()
	if err := l.checkRecursion(gid); err != nil {
		return nil, err
	}
	started := time.Now()
	if !wait(timeout, l.mu.TryRLock) {
		return nil, ErrTimeout
	}
	l.cfg.observeWait("RWLock.ReaderAccess", started)
	return l.claimReader(gid), nil
}

// WriterAccess takes the exclusive write claim, waiting up to timeout
// (<= 0 means forever). While bypass mode is active it returns an
// inert Bypass token immediately.
func (l *RWLock) WriterAccess(timeout time.Duration) (*Token, error) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), nil
	}
	gid := goid.Get()
	if err := l.checkRecursion(gid); err != nil {
		return nil, err
	}
	started := time.Now()
	if !wait(timeout, l.mu.TryLock) {
		return nil, ErrTimeout
	}
	l.cfg.observeWait("RWLock.WriterAccess", started)
	return l.claimWriter(gid), nil
}

// TryReaderAccess takes a read claim without waiting. A recursion
// violation also reports false.
func (l *RWLock) TryReaderAccess() (*Token, bool) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), true
	}
	gid := goid.Get()
	if l.checkRecursion(gid) != nil || !l.mu.TryRLock() {
		return nil, false
	}
	return l.claimReader(gid), true
}

// TryWriterAccess takes the write claim without waiting. A recursion
// violation also reports false.
func (l *RWLock) TryWriterAccess() (*Token, bool) {
	if l.cfg.bypassed() {
		return newToken(TokenBypass, l), true
	}
	gid := goid.Get()
	if l.checkRecursion(gid) != nil || !l.mu.TryLock() {
		return nil, false
	}
	return l.claimWriter(gid), true
}

func (l *RWLock) claimReader(gid int64) *Token {
	l.ownerMu.Lock()
	l.readerIDs[gid] = struct{}{}
	l.ownerMu.Unlock()
	t := newToken(TokenReader, l)
	t.gid = gid
	return t
}

func (l *RWLock) claimWriter(gid int64) *Token {
	l.ownerMu.Lock()
	l.writerID = gid
	l.ownerMu.Unlock()
	t := newToken(TokenWriter, l)
	t.gid = gid
	return t
}

func (l *RWLock) checkRecursion(gid int64) error {
	l.ownerMu.Lock()
	defer l.ownerMu.Unlock()
	if l.writerID == gid {
		return ErrRecursion
	}
	if _, ok := l.readerIDs[gid]; ok {
		return ErrRecursion
	}
	return nil
}

func (l *RWLock) release(t *Token) {
	if !t.released.CompareAndSwap(false, true) {
		return
	}
	l.cfg.releaseHook(t)
	switch t.kind {
	case TokenReader:
		l.ownerMu.Lock()
		delete(l.readerIDs, t.gid)
		l.ownerMu.Unlock()
		l.mu.RUnlock()
	case TokenWriter:
		l.ownerMu.Lock()
		l.writerID = 0
		l.ownerMu.Unlock()
		l.mu.Unlock()
	}
	// TokenBypass never touched the lock; nothing to undo.
}

// wait repeatedly attempts try until it succeeds or the budget runs
// out. A timeout <= 0 waits forever.
func wait(timeout time.Duration, try func() bool) bool {
	if try() {
		return true
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	var spins int
	for {
		delay(&spins)
		if try() {
			return true
		}
		if timeout > 0 && time.Now().After(deadline) {
			return false
		}
	}
}
