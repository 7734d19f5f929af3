// Package retry implements the backoff schedule and credential-provider
// rotation policy described in spec.md §4.3.
package retry

import "time"

// MaxBackoff is the hard cap on retry delay.
const MaxBackoff = 3600 * time.Second

// baseBackoffSeconds is the un-capped schedule: 5, 10, 20, 40, ... doubling
// each attempt, saturating at MaxBackoff.
const baseBackoffSeconds = 5

// WrapMinBackoff is the minimum backoff forced after a rotation wraps back
// to the starting provider, to avoid hot-looping across all bad providers.
const WrapMinBackoff = 60 * time.Second

// Policy is the rotation trigger policy, selecting which crash sub-kinds
// cause provider rotation.
type Policy string

const (
	PolicyNever     Policy = "never"
	PolicyQuickExit Policy = "quick-exit"
	PolicyAnyFail   Policy = "any-failure"
)

// Controller tracks retry count and provider index across session
// failures for one daemon. It holds no clock or persistence concerns of
// its own — callers snapshot RetryCount/ProviderIndex into RuntimeState.
type Controller struct {
	RetryCount    uint32
	ProviderIndex uint32
	MaxRetries    uint32
	NumProviders  uint32

	// rotationStart is the ProviderIndex a rotation streak began at; a
	// rotation that lands back on it is the wrap (spec.md §4.3, tested
	// by §8 property 4: "rotate_provider called N times returns to the
	// original index exactly once").
	rotationStart uint32
}

// RecordFailure increments the retry count.
func (c *Controller) RecordFailure() {
	c.RetryCount++
}

// Reset zeroes the retry count and marks the current ProviderIndex as the
// baseline for the next rotation streak's wrap detection. ProviderIndex
// itself is preserved (spec.md §4.3).
func (c *Controller) Reset() {
	c.RetryCount = 0
	c.rotationStart = c.ProviderIndex
}

// Exhausted reports whether retry_count >= max_retries.
func (c *Controller) Exhausted() bool {
	return c.RetryCount >= c.MaxRetries
}

// NextBackoff returns the delay for the current retry count: min(5*2^i,
// 3600), where i is RetryCount-1 for the attempt about to be made (a
// RetryCount of 1, the first failure, uses i=0 → 5s).
func (c *Controller) NextBackoff() time.Duration {
	return NextBackoff(c.RetryCount)
}

// NextBackoff computes the schedule entry for a given 1-indexed retry
// count in isolation, for callers that don't want to hold a Controller.
func NextBackoff(retryCount uint32) time.Duration {
	if retryCount == 0 {
		return baseBackoffSeconds * time.Second
	}
	d := time.Duration(baseBackoffSeconds) * time.Second
	for i := uint32(0); i < retryCount-1; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

// RotationResult is what RotateProvider reports happened.
type RotationResult struct {
	From    uint32
	To      uint32
	Wrapped bool
}

// ShouldRotate decides, given a crash sub-kind, whether policy triggers
// rotation. quickExit is true for the "child lived < 5s" crash sub-kind.
func (p Policy) ShouldRotate(quickExit bool) bool {
	switch p {
	case PolicyNever:
		return false
	case PolicyQuickExit:
		return quickExit
	case PolicyAnyFail:
		return true
	default:
		return false
	}
}

// RotateProvider advances ProviderIndex cyclically. With zero or one
// providers configured, every rotation wraps (spec.md §4.3: "with a
// single provider, rotate_provider always wraps").
func (c *Controller) RotateProvider() RotationResult {
	n := c.NumProviders
	if n == 0 {
		n = 1
	}
	from := c.ProviderIndex
	to := (from + 1) % n
	c.ProviderIndex = to
	return RotationResult{From: from, To: to, Wrapped: to == c.rotationStart}
}
