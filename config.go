package lockx

import (
	"log/slog"
	"time"
)

// defaultDrainInterval is how long a writer sleeps between checks of the
// active-reader count while waiting for readers to drain.
const defaultDrainInterval = 100 * time.Millisecond

// LockConfig defines configurable options shared by the lock types.
// Options that do not apply to a given lock type are ignored by it.
type LockConfig struct {
	// bypass, when non-nil and returning true, makes reader/writer
	// acquisition return an inert Bypass token without touching the
	// underlying primitive. Used to globally disable enforcement.
	bypass func() bool

	// beforeRelease is invoked synchronously just before the release
	// logic of a token runs. It fires at most once per token; duplicate
	// releases do not re-trigger it.
	beforeRelease func(*Token)

	// drainInterval overrides defaultDrainInterval for CtxRWLock.
	drainInterval time.Duration

	// warnLog / warnAfter enable a warning log line whenever an
	// acquisition waits longer than warnAfter. Disabled when warnLog
	// is nil.
	warnLog   *slog.Logger
	warnAfter time.Duration
}

// WithBypass configures a bypass predicate. While it returns true,
// reader and writer acquisition succeed immediately with a Bypass token
// and releasing that token has no effect on the lock.
func WithBypass(pred func() bool) func(*LockConfig) {
	return func(c *LockConfig) {
		c.bypass = pred
	}
}

// WithBeforeRelease configures a hook invoked just before a token's
// release logic runs.
func WithBeforeRelease(hook func(*Token)) func(*LockConfig) {
	return func(c *LockConfig) {
		c.beforeRelease = hook
	}
}

// WithDrainInterval configures the writer drain poll interval of
// CtxRWLock. If d is zero or negative, the value is ignored.
func WithDrainInterval(d time.Duration) func(*LockConfig) {
	return func(c *LockConfig) {
		if d > 0 {
			c.drainInterval = d
		}
	}
}

// WithSlowWarn logs a warning through logger whenever an acquisition
// waits longer than threshold before succeeding.
func WithSlowWarn(logger *slog.Logger, threshold time.Duration) func(*LockConfig) {
	return func(c *LockConfig) {
		c.warnLog = logger
		c.warnAfter = threshold
	}
}

func newLockConfig(opts ...func(*LockConfig)) LockConfig {
	c := LockConfig{drainInterval: defaultDrainInterval}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *LockConfig) bypassed() bool {
	return c.bypass != nil && c.bypass()
}

func (c *LockConfig) releaseHook(t *Token) {
	if c.beforeRelease != nil {
		c.beforeRelease(t)
	}
}

func (c *LockConfig) observeWait(op string, started time.Time) {
	if c.warnLog == nil {
		return
	}
	if waited := time.Since(started); waited >= c.warnAfter {
		c.warnLog.Warn("slow lock acquisition", "op", op, "waited", waited)
	}
}
