package lockx

import (
	"context"
	"time"

	"github.com/llxisdsh/pb"
)

// RWGroup provides reader/writer locking on arbitrary keys, with one
// CtxRWLock per live key.
//
// Features:
//   - ReaderAccess/WriterAccess per key, same token contract as
//     CtxRWLock.
//   - Infinite keys & auto-cleanup: a key's lock exists only while
//     acquisitions or tokens for it are live; the entry is dropped when
//     the last one goes away.
//
// Usage:
//
//	var group RWGroup[string]
//
//	t, err := group.WriterAccess(ctx, "config")
//	if err != nil { ... }
//	write(config)
//	t.Release()
type RWGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *rwGroupEntry]
}

type rwGroupEntry struct {
	lk  *CtxRWLock
	ref int32
}

// ReaderAccess takes a shared read claim on key k, waiting as long as
// ctx allows.
func (g *RWGroup[K]) ReaderAccess(ctx context.Context, k K) (*Token, error) {
	e := g.checkout(k)
	t, err := e.lk.ReaderAccess(ctx)
	if err != nil {
		g.checkin(k)
	}
	return t, err
}

// ReaderAccessTimeout is ReaderAccess with a wait budget (<= 0 means
// forever).
func (g *RWGroup[K]) ReaderAccessTimeout(ctx context.Context, k K, timeout time.Duration) (*Token, error) {
	e := g.checkout(k)
	t, err := e.lk.ReaderAccessTimeout(ctx, timeout)
	if err != nil {
		g.checkin(k)
	}
	return t, err
}

// WriterAccess takes the exclusive write claim on key k, waiting as
// long as ctx allows.
func (g *RWGroup[K]) WriterAccess(ctx context.Context, k K) (*Token, error) {
	e := g.checkout(k)
	t, err := e.lk.WriterAccess(ctx)
	if err != nil {
		g.checkin(k)
	}
	return t, err
}

// WriterAccessTimeout is WriterAccess with a wait budget (<= 0 means
// forever).
func (g *RWGroup[K]) WriterAccessTimeout(ctx context.Context, k K, timeout time.Duration) (*Token, error) {
	e := g.checkout(k)
	t, err := e.lk.WriterAccessTimeout(ctx, timeout)
	if err != nil {
		g.checkin(k)
	}
	return t, err
}

// Keys returns the number of keys with a live lock entry.
func (g *RWGroup[K]) Keys() int {
	return g.m.Size()
}

// checkout pins the entry for k, creating it on first use. Every
// checkout is balanced by exactly one checkin: directly on a failed
// acquisition, or through the entry lock's release hook when the
// minted token is released.
func (g *RWGroup[K]) checkout(k K) *rwGroupEntry {
	e, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *rwGroupEntry]) (*pb.EntryOf[K, *rwGroupEntry], *rwGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			e := &rwGroupEntry{ref: 1}
			e.lk = NewCtxRWLock(WithBeforeRelease(func(*Token) {
				g.checkin(k)
			}))
			return &pb.EntryOf[K, *rwGroupEntry]{Value: e}, e, false
		},
	)
	return e
}

func (g *RWGroup[K]) checkin(k K) {
	g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *rwGroupEntry]) (*pb.EntryOf[K, *rwGroupEntry], *rwGroupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, false
			}
			return l, l.Value, true
		},
	)
}
