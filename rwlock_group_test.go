package lockx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRWGroup_IndependentKeys(t *testing.T) {
	var g RWGroup[string]

	wa, err := g.WriterAccess(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	// A different key does not contend.
	wb, err := g.WriterAccessTimeout(context.Background(), "b", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("independent key contended: %v", err)
	}
	if n := g.Keys(); n != 2 {
		t.Fatalf("Keys = %d, want 2", n)
	}
	wa.Release()
	wb.Release()
}

func TestRWGroup_SameKeyExcludes(t *testing.T) {
	var g RWGroup[string]

	w, err := g.WriterAccess(context.Background(), "cfg")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := g.ReaderAccessTimeout(context.Background(), "cfg", 50*time.Millisecond)
		done <- err
	}()
	if err := <-done; !errors.Is(err, ErrTimeout) {
		t.Fatalf("reader admitted during writer tenure, got %v", err)
	}
	// The failed acquisition must have dropped its pin; only the
	// writer keeps the entry alive.
	if n := g.Keys(); n != 1 {
		t.Fatalf("Keys = %d, want 1", n)
	}

	w.Release()
	go func() {
		r, err := g.ReaderAccessTimeout(context.Background(), "cfg", time.Second)
		if err == nil {
			r.Release()
		}
		done <- err
	}()
	if err := <-done; err != nil {
		t.Fatalf("reader failed after writer released: %v", err)
	}
}

func TestRWGroup_Cleanup(t *testing.T) {
	var g RWGroup[int]

	toks := make([]*Token, 0, 6)
	for k := range 3 {
		for range 2 {
			done := make(chan *Token, 1)
			go func() {
				r, err := g.ReaderAccess(context.Background(), k)
				if err != nil {
					t.Error(err)
					close(done)
					return
				}
				done <- r
			}()
			tok := <-done
			if tok == nil {
				t.Fatal("reader acquisition failed")
			}
			toks = append(toks, tok)
		}
	}
	if n := g.Keys(); n != 3 {
		t.Fatalf("Keys = %d, want 3", n)
	}

	for _, tok := range toks {
		tok.Release()
		tok.Release() // duplicates must not unbalance the refcount
	}
	if n := g.Keys(); n != 0 {
		t.Fatalf("Keys = %d after releasing everything, want 0", n)
	}
}
