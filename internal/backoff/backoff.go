// Package backoff provides the doubling, capped delay used by every
// reconnect loop in the service.
package backoff

import (
	"context"
	"sync"
	"time"
)

type Backoff struct {
	Min time.Duration
	Max time.Duration

	mu      sync.Mutex
	current time.Duration
}

func New(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return &Backoff{Min: min, Max: max}
}

// Next returns the delay to wait before the next attempt and doubles it,
// capped at Max.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current < b.Min {
		b.current = b.Min
	}
	delay := b.current
	b.current *= 2
	if b.current > b.Max {
		b.current = b.Max
	}
	return delay
}

// Reset is called after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.current = 0
	b.mu.Unlock()
}

// Wait sleeps for the next delay. It returns false if ctx ends first.
func (b *Backoff) Wait(ctx context.Context) bool {
	t := time.NewTimer(b.Next())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
