package service

// limiter.go bounds how many conversions run at once. Requests that cannot
// get a slot within maxWait fail with ErrBusy. WaitForDrain lets shutdown
// wait for running conversions.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when every conversion slot stays taken for maxWait.
var ErrBusy = errors.New("too many conversions in progress")

const (
	DefaultMaxConcurrent = 4
	DefaultMaxWait       = 10 * time.Second
)

// Limiter is a weighted semaphore with a bounded wait.
type Limiter struct {
	sem     *semaphore.Weighted
	size    int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewLimiter allows at most maxConcurrent holders. Non-positive values use the defaults.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Limiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		size:    int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must Release it.
// Returns ctx.Err() if ctx ends first, ErrBusy if the wait runs out.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrBusy
	}
	l.active.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// ActiveCount returns the number of held slots.
func (l *Limiter) ActiveCount() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until every slot is free or ctx ends.
// New acquirers queue behind it while it waits.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.size); err != nil {
		return err
	}
	l.sem.Release(l.size)
	return nil
}

// LimiterStatus is a snapshot of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *Limiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     int(l.size) - active,
		MaxConcurrent: int(l.size),
	}
}
