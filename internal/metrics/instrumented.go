package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

// InstrumentedEngine wraps a scoutx.Engine with request metrics and debug logging.
type InstrumentedEngine struct {
	inner scoutx.Engine
}

// Instrument wraps engine.
func Instrument(engine scoutx.Engine) *InstrumentedEngine {
	return &InstrumentedEngine{inner: engine}
}

// Search implements scoutx.Engine.
func (e *InstrumentedEngine) Search(ctx context.Context, q *scoutx.Query) (*scoutx.Response, error) {
	start := time.Now()
	resp, err := e.inner.Search(ctx, q)
	e.observe(ctx, "search", start, err)
	e.recordHits(q, resp)
	return resp, err
}

// Paginate implements scoutx.Engine.
func (e *InstrumentedEngine) Paginate(ctx context.Context, q *scoutx.Query, perPage, page int) (*scoutx.Response, error) {
	start := time.Now()
	resp, err := e.inner.Paginate(ctx, q, perPage, page)
	e.observe(ctx, "paginate", start, err)
	e.recordHits(q, resp)
	return resp, err
}

// BulkUpsert implements scoutx.Engine.
func (e *InstrumentedEngine) BulkUpsert(ctx context.Context, records []scoutx.Searchable) error {
	start := time.Now()
	err := e.inner.BulkUpsert(ctx, records)
	e.observe(ctx, "bulk_upsert", start, err)
	if err == nil {
		EngineDocumentsTotal.WithLabelValues("bulk_upsert").Add(float64(len(records)))
	}
	return err
}

// BulkDelete implements scoutx.Engine.
func (e *InstrumentedEngine) BulkDelete(ctx context.Context, records []scoutx.Searchable) error {
	start := time.Now()
	err := e.inner.BulkDelete(ctx, records)
	e.observe(ctx, "bulk_delete", start, err)
	if err == nil {
		EngineDocumentsTotal.WithLabelValues("bulk_delete").Add(float64(len(records)))
	}
	return err
}

// MapProperties implements scoutx.Engine.
func (e *InstrumentedEngine) MapProperties(ctx context.Context, typeName string, properties map[string]any) error {
	start := time.Now()
	err := e.inner.MapProperties(ctx, typeName, properties)
	e.observe(ctx, "map_properties", start, err)
	return err
}

func (e *InstrumentedEngine) observe(ctx context.Context, operation string, start time.Time, err error) {
	duration := time.Since(start)
	status := Status(err)

	EngineRequestsTotal.WithLabelValues(operation, status).Inc()
	EngineRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())

	if err != nil {
		slog.ErrorContext(ctx, "Engine request failed",
			"operation", operation,
			"status", status,
			"duration", duration,
			"error", err,
		)
		return
	}
	slog.DebugContext(ctx, "Engine request completed",
		"operation", operation,
		"duration", duration,
	)
}

func (e *InstrumentedEngine) recordHits(q *scoutx.Query, resp *scoutx.Response) {
	if resp == nil {
		return
	}
	SearchHitsTotal.WithLabelValues(q.Index).Add(float64(len(resp.Hits.Hits)))
}

// Status maps an engine error to a low-cardinality label value.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, scoutx.ErrIndexNotFound):
		return "index_not_found"
	case errors.Is(err, scoutx.ErrCanceled):
		return "canceled"
	case errors.Is(err, scoutx.ErrTimeout):
		return "timeout"
	case errors.Is(err, scoutx.ErrBulkItemFailed):
		return "bulk_item_failed"
	case errors.Is(err, scoutx.ErrInvalidPage):
		return "invalid_page"
	case errors.Is(err, scoutx.ErrTransport):
		return "transport"
	default:
		return "error"
	}
}
