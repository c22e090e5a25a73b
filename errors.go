package lockx

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when an acquisition cannot be completed
	// within the caller-supplied timeout. No lock state is held when
	// this error is returned.
	ErrTimeout = errors.New("lockx: acquire timed out")

	// ErrRecursion is returned by RWLock when a goroutine that already
	// holds a claim requests another one. The lock is non-recursive;
	// failing fast here prevents a self-deadlock.
	ErrRecursion = errors.New("lockx: recursive acquisition on a non-recursive lock")
)

// waitFailed maps a failed semaphore wait to the public error taxonomy.
// If the caller's own context is done, its error is surfaced (wrapped, so
// errors.Is against context.Canceled / context.DeadlineExceeded works).
// Otherwise the internal timeout budget expired and ErrTimeout is returned.
func waitFailed(outer context.Context) error {
	if err := outer.Err(); err != nil {
		return fmt.Errorf("lockx: acquire aborted: %w", err)
	}
	return ErrTimeout
}
