package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveTriggerIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.ObserveTrigger(true)
	c.ObserveTrigger(false)
	c.ObserveTrigger(false)

	got := counterValue(t, c.triggerTotal.WithLabelValues("error"))
	if got != 2 {
		t.Fatalf("error counter = %v, want 2", got)
	}
	got = counterValue(t, c.triggerTotal.WithLabelValues("ok"))
	if got != 1 {
		t.Fatalf("ok counter = %v, want 1", got)
	}
}

func TestObserveSnapshotUpdatesBothMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)

	c.ObserveSnapshot(2, 5)

	var m dto.Metric
	if err := c.snapshotFailed.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if m.Counter.GetValue() != 2 {
		t.Fatalf("snapshotFailed = %v, want 2", m.Counter.GetValue())
	}

	var h dto.Metric
	if err := c.snapshotGroups.Write(&h); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if h.Histogram.GetSampleCount() != 1 || h.Histogram.GetSampleSum() != 5 {
		t.Fatalf("snapshotGroups count/sum = %v/%v, want 1/5", h.Histogram.GetSampleCount(), h.Histogram.GetSampleSum())
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.Counter.GetValue()
}
