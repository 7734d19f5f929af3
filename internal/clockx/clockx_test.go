package clockx

import (
	"context"
	"testing"
	"time"
)

func TestSleepCompletes(t *testing.T) {
	c := &Clock{Now: time.Now}
	res := c.Sleep(context.Background(), 10*time.Millisecond)
	if !res.Woke {
		t.Errorf("expected Woke=true")
	}
	if res.Suspended {
		t.Errorf("expected Suspended=false for a normal sleep")
	}
}

func TestSleepCancelled(t *testing.T) {
	c := &Clock{Now: time.Now}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Sleep(ctx, time.Second)
	if res.Woke {
		t.Errorf("expected Woke=false when ctx is already cancelled")
	}
}

func TestSleepDetectsSuspend(t *testing.T) {
	// Simulate a suspend: the wall clock jumps forward far more than the
	// requested sleep duration by the time Now is read a second time.
	calls := 0
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Clock{Now: func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(10 * time.Minute)
	}}
	res := c.Sleep(context.Background(), 50*time.Millisecond)
	if !res.Suspended {
		t.Errorf("expected Suspended=true, elapsed=%v", res.WallElapsed)
	}
}
