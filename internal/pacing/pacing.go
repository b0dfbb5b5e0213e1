// Package pacing holds the settle delays inserted after render-triggering
// actions. They are unconditional pauses and are kept apart from the
// condition waits in the browser package.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Settler interface {
	Settle(ctx context.Context) error
}

// Fixed pauses for the same duration every time.
type Fixed time.Duration

func (f Fixed) Settle(ctx context.Context) error {
	return sleep(ctx, time.Duration(f))
}

// Jittered pauses for a random duration in [min, max).
type Jittered struct {
	minDelay time.Duration
	maxDelay time.Duration
	mu       sync.Mutex
	rnd      *rand.Rand
}

// NewJittered creates a Settler sleeping a random delay in [minDelay, maxDelay].
func NewJittered(minDelay, maxDelay time.Duration) *Jittered {
	return &Jittered{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (j *Jittered) Settle(ctx context.Context) error {
	return sleep(ctx, j.delay())
}

func (j *Jittered) delay() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxDelay <= j.minDelay {
		return j.minDelay
	}

	delta := j.maxDelay - j.minDelay
	return j.minDelay + time.Duration(j.rnd.Int63n(int64(delta)))
}

// New returns a Fixed settler when jitter is zero and a Jittered one otherwise.
func New(delay, jitter time.Duration) Settler {
	if jitter <= 0 {
		return Fixed(delay)
	}
	return NewJittered(delay, delay+jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
