package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Delayer sleeps for randomized durations. The random source is injectable so
// tests can make the waits deterministic.
type Delayer struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDelayer(rnd *rand.Rand) *Delayer {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Delayer{rnd: rnd, sleep: Sleep}
}

// NoDelay returns a Delayer that never blocks.
func NoDelay() *Delayer {
	d := NewDelayer(rand.New(rand.NewSource(1)))
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

// Duration picks a wait in [min, max). A non-positive span yields min.
func (d *Delayer) Duration(min, max time.Duration) time.Duration {
	span := max - min
	if span <= 0 {
		return min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return min + time.Duration(d.rnd.Int63n(int64(span)))
}

// Wait sleeps for a random duration between min and max.
func (d *Delayer) Wait(ctx context.Context, min, max time.Duration) error {
	return d.sleep(ctx, d.Duration(min, max))
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
