// Package lockx provides scoped-token locking primitives: a reentrant
// exclusive lock whose ownership follows a context chain, a blocking
// reader/writer lock with bounded waits, and a context-aware
// reader/writer lock built from a binary gate.
//
// Every acquisition returns a *Token. Releasing the token is the only
// release mechanism; release is idempotent and never fails.
package lockx

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// TokenKind identifies which access a Token represents.
type TokenKind uint8

const (
	// TokenExclusive is held by ReentrantLock acquisitions.
	TokenExclusive TokenKind = iota
	// TokenReader is a shared read claim.
	TokenReader
	// TokenWriter is an exclusive write claim.
	TokenWriter
	// TokenBypass is the inert token minted while bypass mode is
	// active. It never touches the underlying lock.
	TokenBypass
)

func (k TokenKind) String() string {
	switch k {
	case TokenExclusive:
		return "exclusive"
	case TokenReader:
		return "reader"
	case TokenWriter:
		return "writer"
	case TokenBypass:
		return "bypass"
	}
	return "unknown"
}

// releaser is the back-reference a Token holds to its owning lock.
type releaser interface {
	release(t *Token)
}

// Token is a release-once capability returned by every acquire call.
// Disposing it via Release is the only way to give the access back.
// A Token must not be copied.
type Token struct {
	id    uuid.UUID
	kind  TokenKind
	owner releaser

	// flow is set only for TokenExclusive (the nesting record of the
	// owning call chain); gid only for blocking RWLock claims.
	flow *flowHolder
	gid  int64

	released atomic.Bool
}

func newToken(kind TokenKind, owner releaser) *Token {
	return &Token{id: uuid.New(), kind: kind, owner: owner}
}

// ID returns the unique identifier of the token.
func (t *Token) ID() uuid.UUID { return t.id }

// Kind returns the access variant this token represents.
func (t *Token) Kind() TokenKind { return t.kind }

// Released reports whether the token has already been released.
func (t *Token) Released() bool { return t.released.Load() }

// Release gives the access back to the owning lock. It is safe to call
// multiple times, including concurrently; only the first call has any
// effect.
func (t *Token) Release() {
	if t.owner == nil {
		t.released.Store(true)
		return
	}
	t.owner.release(t)
}
