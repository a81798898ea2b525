package backoff

import (
	"context"
	"testing"
	"time"
)

func TestNextDoublesUpToMax(t *testing.T) {
	b := New(time.Second, 10*time.Second)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}

	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Errorf("after reset got %v, want 1s", got)
	}
}

func TestWaitStopsOnCancel(t *testing.T) {
	b := New(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if b.Wait(ctx) {
		t.Error("Wait should report cancellation")
	}
}

func TestWaitElapses(t *testing.T) {
	b := New(time.Millisecond, time.Millisecond)

	if !b.Wait(context.Background()) {
		t.Error("Wait should return true after the delay")
	}
}
