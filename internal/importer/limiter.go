package importer

// limiter.go bounds how many commit batches run at once.
//
// Each commit holds a database connection and streams rows sequentially, so
// unbounded parallel commits would exhaust the pool under load. Callers wait
// up to maxWait for a slot, then fail with ErrTooManyImports. WaitForDrain
// claims every slot, which only succeeds once in-flight commits have
// released theirs, so shutdown needs no polling.

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyImports is returned when all commit slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentImports is the default limit for parallel commits.
const DefaultMaxConcurrentImports = 3

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 15 * time.Second

// CommitLimiter restricts the number of import commits running in parallel.
type CommitLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration

	mu     sync.Mutex
	active int
}

// NewCommitLimiter creates a limiter that allows at most maxConcurrent
// simultaneous commits. Requests that cannot acquire a slot within maxWait
// receive ErrTooManyImports.
func NewCommitLimiter(maxConcurrent int, maxWait time.Duration) *CommitLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &CommitLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire attempts to acquire a commit slot. Returns nil on success,
// ErrTooManyImports if the timeout expires. The caller MUST call Release()
// when the commit completes (use defer).
func (l *CommitLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		// Distinguish caller cancellation from slot-wait timeout.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return nil
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *CommitLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}

	l.mu.Lock()
	l.active++
	l.mu.Unlock()
	return true
}

// Release releases a previously acquired slot. Must be called exactly once
// for each successful Acquire/TryAcquire.
func (l *CommitLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	l.sem.Release(1)
}

// ActiveCount returns the number of commits currently running.
func (l *CommitLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the maximum allowed concurrent commits.
func (l *CommitLimiter) MaxConcurrent() int {
	return int(l.max)
}

// Available returns the number of free slots.
func (l *CommitLimiter) Available() int {
	return int(l.max) - l.ActiveCount()
}

// WaitForDrain blocks until all active commits complete or the context is
// cancelled. Used during shutdown so in-flight imports finish cleanly.
func (l *CommitLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.max); err != nil {
		return err
	}
	l.sem.Release(l.max)
	return nil
}

// CommitLimiterStatus is a snapshot of the limiter's current state.
type CommitLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *CommitLimiter) Status() CommitLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return CommitLimiterStatus{
		Active:        active,
		Available:     int(l.max) - active,
		MaxConcurrent: int(l.max),
	}
}
