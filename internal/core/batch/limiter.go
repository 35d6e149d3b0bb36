// Package batch resolves the products of many receipt lines at once, bounding
// the number of language model calls in flight across the whole process.
package batch

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a process-wide cap on concurrent language model calls. One Limiter
// is shared by every receipt and every stage that talks to the model.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

func NewLimiter(size int) *Limiter {
	if size < 1 {
		size = 1
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

type slotKey struct{}

// Do runs fn once a slot is free. It returns ctx's error without running fn
// if ctx ends while waiting. A call made from inside fn with the context fn
// received reuses the caller's slot.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(slotKey{}).(*Limiter); held == l {
		return fn(ctx)
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire llm slot: %w", err)
	}
	defer l.sem.Release(1)

	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}

	return fn(context.WithValue(ctx, slotKey{}, l))
}

// Size is the maximum number of concurrent calls.
func (l *Limiter) Size() int {
	return int(l.size)
}

// Peak is the highest number of calls observed in flight at once.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}
