// Package wake classifies session wakeups as on-time or delayed, per
// spec.md §4.9. A wake delayed by machine suspend is classified like any
// other delay.
package wake

import (
	"fmt"
	"time"
)

// Threshold is the boundary beyond which a wake is considered delayed.
const Threshold = 5 * time.Minute

// Classify compares a scheduled wake time to now and, if the gap exceeds
// Threshold, returns the formatted delay and true. 4m59s is on-time;
// 5m01s is delayed (spec.md §8 boundary behavior).
func Classify(scheduled, now time.Time) (delay string, isDelayed bool) {
	gap := now.Sub(scheduled)
	if gap <= Threshold {
		return "", false
	}
	return Format(gap), true
}

// Format renders a duration as "{h}h{m}m" when it spans an hour or more,
// else "{m}m".
func Format(d time.Duration) string {
	total := int(d.Round(time.Minute) / time.Minute)
	h := total / 60
	m := total % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// Notice renders the prepend-to-prompt text for a delayed wake.
func Notice(delay string) string {
	return fmt.Sprintf("DELAYED WAKE: scheduled session started %s late.", delay)
}
