package lockx

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGate_EnterLeave(t *testing.T) {
	g := NewGate()

	if err := g.Enter(context.Background()); err != nil {
		t.Fatal(err)
	}
	if g.TryEnter() {
		t.Error("TryEnter succeeded on a held gate")
	}
	g.Leave()
	if !g.TryEnter() {
		t.Error("TryEnter failed on a free gate")
	}
	g.Leave()
}

func TestGate_Timeout(t *testing.T) {
	g := NewGate()
	if err := g.Enter(context.Background()); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err := g.enterTimeout(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("timeout fired after %v, want ~50ms", elapsed)
	}

	// The failed wait must not have consumed the gate.
	g.Leave()
	if err := g.enterTimeout(context.Background(), time.Second); err != nil {
		t.Fatal(err)
	}
	g.Leave()
}

func TestGate_Cancel(t *testing.T) {
	g := NewGate()
	if err := g.Enter(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Leave()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- g.Enter(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
