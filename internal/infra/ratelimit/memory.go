package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/domain/ratelimit"
)

const DefaultSweepInterval = 5 * time.Minute

// MemoryLimiter is a process-local fixed-window limiter. One entry is kept
// per identifier; expired entries are replaced on the next check and
// evicted by the background sweep.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	clock      ratelimit.Clock
	sweepEvery time.Duration
	logger     *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

type entry struct {
	count   int
	resetAt time.Time
}

type MemoryOption func(*MemoryLimiter)

func WithClock(c ratelimit.Clock) MemoryOption {
	return func(l *MemoryLimiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithSweepInterval sets how often Start sweeps expired entries.
// Zero or negative disables the background sweep.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.sweepEvery = d }
}

func WithLogger(logger *slog.Logger) MemoryOption {
	return func(l *MemoryLimiter) { l.logger = logger }
}

func NewMemory(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries:    make(map[string]*entry),
		clock:      ratelimit.SystemClock,
		sweepEvery: DefaultSweepInterval,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Check(_ context.Context, p ratelimit.Policy) (ratelimit.Decision, error) {
	if err := p.Validate(); err != nil {
		return ratelimit.Decision{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e, ok := l.entries[p.Identifier]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(p.Window)}
		l.entries[p.Identifier] = e
		return ratelimit.Decision{Allowed: true, Remaining: p.MaxRequests - 1, ResetAt: e.resetAt}, nil
	}

	if e.count < p.MaxRequests {
		e.count++
		return ratelimit.Decision{Allowed: true, Remaining: p.MaxRequests - e.count, ResetAt: e.resetAt}, nil
	}

	return ratelimit.Decision{Allowed: false, Remaining: 0, ResetAt: e.resetAt}, nil
}

// FormatResetTime renders the wait until resetAt against the limiter clock.
func (l *MemoryLimiter) FormatResetTime(resetAt time.Time) string {
	return ratelimit.FormatResetTime(resetAt, l.clock.Now())
}

// Sweep evicts expired entries and reports how many were removed.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start runs the periodic sweep until ctx is done or Stop is called.
// Calling Start more than once has no effect.
func (l *MemoryLimiter) Start(ctx context.Context) {
	if l.sweepEvery <= 0 {
		return
	}
	l.startOnce.Do(func() {
		l.started.Store(true)
		t := time.NewTicker(l.sweepEvery)
		go func() {
			defer close(l.done)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-l.stop:
					return
				case <-t.C:
					if n := l.Sweep(); n > 0 && l.logger != nil {
						l.logger.Debug("ratelimit sweep", "evicted", n)
					}
				}
			}
		}()
	})
}

// Stop terminates the sweep goroutine and waits for it to exit. It is safe
// to call multiple times, and before Start.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	if l.started.Load() {
		<-l.done
	}
}
