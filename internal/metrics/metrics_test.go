package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStreamRecordsBatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStream(reg)

	m.SetRunning(true)
	m.BatchPublished(7, 3, 40*time.Millisecond)
	m.BatchPublished(5, 0, 10*time.Millisecond)
	m.LoopFailed("publish")

	if got := testutil.ToFloat64(m.batches); got != 2 {
		t.Fatalf("batches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("0")); got != 12 {
		t.Fatalf("legit events = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("1")); got != 3 {
		t.Fatalf("fraud events = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.lastBatchSize); got != 5 {
		t.Fatalf("last batch size = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("publish")); got != 1 {
		t.Fatalf("publish failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.running); got != 1 {
		t.Fatalf("running = %v, want 1", got)
	}
	m.SetRunning(false)
	if got := testutil.ToFloat64(m.running); got != 0 {
		t.Fatalf("running = %v, want 0", got)
	}
}

func TestRegisterReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewSink(reg)
	second := NewSink(reg)

	first.FileWritten("transactions", 10)
	second.FileWritten("transactions", 5)

	if first.rows != second.rows {
		t.Fatal("expected the second sink to reuse the registered counter")
	}
	if got := testutil.ToFloat64(first.rows.WithLabelValues("transactions")); got != 15 {
		t.Fatalf("rows = %v, want 15", got)
	}
	if got := testutil.ToFloat64(first.files.WithLabelValues("transactions")); got != 2 {
		t.Fatalf("files = %v, want 2", got)
	}
}

func TestHTTPObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	h.Observe("POST", "/start", 200, 5*time.Millisecond)
	h.Observe("POST", "/start", 400, time.Millisecond)

	if got := testutil.CollectAndCount(h.requests); got != 2 {
		t.Fatalf("expected 2 label sets, got %d", got)
	}
}
