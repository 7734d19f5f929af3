package metrics

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderIncrementsSessionsByOutcome(t *testing.T) {
	reg := prom.NewRegistry()
	r := New(reg)
	r.IncSession("clean")
	r.IncSession("clean")
	r.IncSession("timeout")

	if got := testutil.ToFloat64(r.sessionsTotal.WithLabelValues("clean")); got != 2 {
		t.Errorf("clean sessions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.sessionsTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("timeout sessions = %v, want 1", got)
	}
}

func TestRecorderGauges(t *testing.T) {
	reg := prom.NewRegistry()
	r := New(reg)
	r.SetRetryCount(3)
	r.SetProviderIndex(1)
	if got := testutil.ToFloat64(r.retryCount); got != 3 {
		t.Errorf("retry_count = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.providerIndex); got != 1 {
		t.Errorf("provider_index = %v, want 1", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.IncSession("clean")
	r.SetRetryCount(1)
	r.IncFallbackFired()
	r.SetProviderIndex(2)
}
