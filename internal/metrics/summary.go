package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters returns the value of every scoutx counter in gatherer, keyed by
// name and labels, as in scoutx_engine_documents_total{operation="bulk_upsert"}.
func Counters(gatherer prometheus.Gatherer) (map[string]float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "scoutx_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			out[mf.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

// Delta returns the counters of gatherer that grew since before.
func Delta(gatherer prometheus.Gatherer, before map[string]float64) (map[string]float64, error) {
	after, err := Counters(gatherer)
	if err != nil {
		return nil, err
	}

	delta := make(map[string]float64)
	for key, v := range after {
		if d := v - before[key]; d > 0 {
			delta[key] = d
		}
	}
	return delta, nil
}

// Summarize runs fn and logs the counters it moved. It serves processes with
// no scrape endpoint, such as Lambda invocations.
func Summarize(ctx context.Context, gatherer prometheus.Gatherer, fn func() error) error {
	before, err := Counters(gatherer)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read metrics", "error", err)
		return fn()
	}

	runErr := fn()

	delta, err := Delta(gatherer, before)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read metrics", "error", err)
		return runErr
	}

	attrs := make([]any, 0, 2*len(delta))
	for key, v := range delta {
		attrs = append(attrs, key, v)
	}
	slog.InfoContext(ctx, "Engine metrics", attrs...)
	return runErr
}
