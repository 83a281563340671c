package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
	"github.com/letmevibethatforyou/scoutx/inmemory"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	reg := prometheus.NewRegistry()
	reg.MustRegister(EngineRequestsTotal, EngineRequestDuration, EngineDocumentsTotal, SearchHitsTotal)
	return reg
}

func TestCounters(t *testing.T) {
	reg := newTestRegistry(t)
	EngineDocumentsTotal.WithLabelValues("counters_test").Add(4)

	counters, err := Counters(reg)
	if err != nil {
		t.Fatalf("Counters failed: %v", err)
	}

	key := `scoutx_engine_documents_total{operation="counters_test"}`
	if counters[key] < 4 {
		t.Errorf("Expected %s >= 4, got %v", key, counters)
	}
	for k := range counters {
		if strings.HasPrefix(k, "scoutx_engine_request_duration") {
			t.Errorf("Expected histograms to be left out, got %s", k)
		}
	}
}

func TestDelta(t *testing.T) {
	reg := newTestRegistry(t)
	EngineDocumentsTotal.WithLabelValues("delta_unchanged").Add(1)

	before, err := Counters(reg)
	if err != nil {
		t.Fatalf("Counters failed: %v", err)
	}

	EngineDocumentsTotal.WithLabelValues("delta_changed").Add(3)
	EngineRequestsTotal.WithLabelValues("delta_changed", "ok").Inc()

	delta, err := Delta(reg, before)
	if err != nil {
		t.Fatalf("Delta failed: %v", err)
	}

	if delta[`scoutx_engine_documents_total{operation="delta_changed"}`] != 3 {
		t.Errorf("Expected 3 documents, got %v", delta)
	}
	if delta[`scoutx_engine_requests_total{operation="delta_changed",status="ok"}`] != 1 {
		t.Errorf("Expected 1 request, got %v", delta)
	}
	if _, ok := delta[`scoutx_engine_documents_total{operation="delta_unchanged"}`]; ok {
		t.Errorf("Expected unchanged counter to be left out, got %v", delta)
	}
}

func TestSummarize(t *testing.T) {
	reg := newTestRegistry(t)
	e := Instrument(inmemory.New())
	records := []scoutx.Searchable{inmemory.Record{ID: "1", Index: "summary", Fields: map[string]interface{}{"a": 1}}}

	called := false
	err := Summarize(context.Background(), reg, func() error {
		called = true
		return e.BulkUpsert(context.Background(), records)
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if !called {
		t.Error("Expected fn to run")
	}

	cause := errors.New("stream failed")
	if err := Summarize(context.Background(), reg, func() error { return cause }); !errors.Is(err, cause) {
		t.Errorf("Expected fn error to be returned, got %v", err)
	}
}
