package retry

import (
	"testing"
	"time"
)

func TestNextBackoffSchedule(t *testing.T) {
	cases := []struct {
		retryCount uint32
		want       time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 80 * time.Second},
		{10, 2560 * time.Second},
		{11, MaxBackoff},
		{9, 1280 * time.Second},
	}
	for _, c := range cases {
		got := NextBackoff(c.retryCount)
		if got != c.want {
			t.Errorf("NextBackoff(%d) = %v, want %v", c.retryCount, got, c.want)
		}
	}
}

func TestBackoffCapSaturatesAtLargeAttempts(t *testing.T) {
	if got := NextBackoff(100); got != MaxBackoff {
		t.Errorf("NextBackoff(100) = %v, want cap %v", got, MaxBackoff)
	}
}

func TestResetPreservesProviderIndexAndZeroesRetryCount(t *testing.T) {
	c := &Controller{RetryCount: 5, ProviderIndex: 2}
	c.Reset()
	if c.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", c.RetryCount)
	}
	if c.ProviderIndex != 2 {
		t.Errorf("ProviderIndex = %d, want preserved at 2", c.ProviderIndex)
	}
}

func TestExhaustedBoundary(t *testing.T) {
	c := &Controller{MaxRetries: 3}
	c.RetryCount = 2
	if c.Exhausted() {
		t.Error("expected not exhausted at retry_count=2, max_retries=3")
	}
	c.RetryCount = 3
	if !c.Exhausted() {
		t.Error("expected exhausted at retry_count == max_retries")
	}
}

func TestRotateProviderWrapsAfterNCallsWithNProviders(t *testing.T) {
	const n = 3
	c := &Controller{NumProviders: n}
	var wraps int
	var lastWrapAt int
	for i := 1; i <= n; i++ {
		res := c.RotateProvider()
		if res.Wrapped {
			wraps++
			lastWrapAt = i
		}
	}
	if wraps != 1 {
		t.Fatalf("expected exactly one wrap in %d calls, got %d", n, wraps)
	}
	if lastWrapAt != n {
		t.Errorf("expected wrap on the Nth call, got call #%d", lastWrapAt)
	}
}

func TestRotateProviderSingleProviderAlwaysWraps(t *testing.T) {
	c := &Controller{NumProviders: 1}
	for i := 0; i < 3; i++ {
		res := c.RotateProvider()
		if !res.Wrapped {
			t.Errorf("call %d: expected wrap=true with a single provider", i)
		}
	}
}

func TestRotateProviderZeroProvidersTreatedAsOne(t *testing.T) {
	c := &Controller{NumProviders: 0}
	res := c.RotateProvider()
	if !res.Wrapped || res.To != 0 {
		t.Errorf("expected wrap to index 0 with zero providers, got %+v", res)
	}
}

func TestPolicyShouldRotate(t *testing.T) {
	cases := []struct {
		policy    Policy
		quickExit bool
		want      bool
	}{
		{PolicyNever, true, false},
		{PolicyNever, false, false},
		{PolicyQuickExit, true, true},
		{PolicyQuickExit, false, false},
		{PolicyAnyFail, true, true},
		{PolicyAnyFail, false, true},
	}
	for _, c := range cases {
		if got := c.policy.ShouldRotate(c.quickExit); got != c.want {
			t.Errorf("%s.ShouldRotate(%v) = %v, want %v", c.policy, c.quickExit, got, c.want)
		}
	}
}
