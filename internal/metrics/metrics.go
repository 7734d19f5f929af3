// Package metrics exposes optional Prometheus counters/gauges for the
// daemon loop. Off by default (no component calls into a nil *Recorder
// with effect); enabled by passing a --metrics-addr to `cryo daemon`.
package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the registered collectors. The zero value is not
// usable — construct with New. A nil *Recorder is valid everywhere a
// Recorder is accepted and every method becomes a no-op, so callers
// don't need to branch on whether metrics are enabled.
type Recorder struct {
	once sync.Once

	sessionsTotal      *prom.CounterVec
	retryCount         prom.Gauge
	fallbackFiredTotal prom.Counter
	providerIndex      prom.Gauge
}

// New constructs and registers the cryo metrics family against reg (a
// fresh registry if reg is nil).
func New(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{}
	r.once.Do(func() {
		r.sessionsTotal = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cryo",
			Name:      "sessions_total",
			Help:      "Completed agent sessions by outcome.",
		}, []string{"outcome"})
		r.retryCount = prom.NewGauge(prom.GaugeOpts{
			Namespace: "cryo",
			Name:      "retry_count",
			Help:      "Current consecutive-failure retry count.",
		})
		r.fallbackFiredTotal = prom.NewCounter(prom.CounterOpts{
			Namespace: "cryo",
			Name:      "fallback_fired_total",
			Help:      "Number of times the dead-man-switch fallback has fired.",
		})
		r.providerIndex = prom.NewGauge(prom.GaugeOpts{
			Namespace: "cryo",
			Name:      "provider_index",
			Help:      "Index of the currently active credential provider.",
		})
		reg.MustRegister(r.sessionsTotal, r.retryCount, r.fallbackFiredTotal, r.providerIndex)
	})
	return r
}

// IncSession records one completed session under outcome (spec.md §4.2's
// clean, crash/quick_exit, crash/exit_without_hibernate and timeout labels).
func (r *Recorder) IncSession(outcome string) {
	if r == nil || r.sessionsTotal == nil {
		return
	}
	r.sessionsTotal.WithLabelValues(outcome).Inc()
}

// SetRetryCount reports the controller's current retry count.
func (r *Recorder) SetRetryCount(n uint32) {
	if r == nil || r.retryCount == nil {
		return
	}
	r.retryCount.Set(float64(n))
}

// IncFallbackFired records one fallback delivery.
func (r *Recorder) IncFallbackFired() {
	if r == nil || r.fallbackFiredTotal == nil {
		return
	}
	r.fallbackFiredTotal.Inc()
}

// SetProviderIndex reports the active provider index.
func (r *Recorder) SetProviderIndex(n uint32) {
	if r == nil || r.providerIndex == nil {
		return
	}
	r.providerIndex.Set(float64(n))
}
