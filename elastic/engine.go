package elastic

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

const (
	// DefaultBatchSize is the number of records per bulk request.
	DefaultBatchSize = 2000

	// DefaultAnalyzer analyzes string fields picked up by the dynamic template.
	DefaultAnalyzer = "standard"
)

// API is the subset of Elasticsearch used by Engine. Client implements it.
type API interface {
	Search(ctx context.Context, index string, req *scoutx.CompiledRequest) (*scoutx.Response, error)
	Bulk(ctx context.Context, ops []BulkOperation) error
	PutMapping(ctx context.Context, index string, body map[string]any) error
	CreateIndex(ctx context.Context, index string, body map[string]any) error
}

// Engine implements scoutx.Engine on Elasticsearch. Each index type name
// is stored in its own index, named "<index>_<type>".
type Engine struct {
	api       API
	index     string
	batchSize int
	analyzer  string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBatchSize sets the number of records per bulk request.
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithAnalyzer sets the analyzer of the default dynamic string template.
func WithAnalyzer(analyzer string) EngineOption {
	return func(e *Engine) {
		if analyzer != "" {
			e.analyzer = analyzer
		}
	}
}

// NewEngine creates an engine writing to indices prefixed with index.
func NewEngine(api API, index string, opts ...EngineOption) *Engine {
	e := &Engine{
		api:       api,
		index:     index,
		batchSize: DefaultBatchSize,
		analyzer:  DefaultAnalyzer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IndexFor returns the physical index holding documents of typeName.
func (e *Engine) IndexFor(typeName string) string {
	if typeName == "" {
		return e.index
	}
	return e.index + "_" + typeName
}

// Search implements scoutx.Engine. The size is the query limit, when set.
func (e *Engine) Search(ctx context.Context, q *scoutx.Query) (*scoutx.Response, error) {
	req := scoutx.Compile(q, scoutx.CompileOptions{
		Size:           q.Limit,
		NumericFilters: q.NumericFilters(),
	})
	return e.api.Search(ctx, e.IndexFor(req.Index), req)
}

// Paginate implements scoutx.Engine. NbPages is total/perPage without
// rounding, so a partial last page shows up as a fraction.
func (e *Engine) Paginate(ctx context.Context, q *scoutx.Query, perPage, page int) (*scoutx.Response, error) {
	if perPage < 1 || page < 1 {
		return nil, errors.Wrapf(scoutx.ErrInvalidPage, "page %d of size %d", page, perPage)
	}

	from := page*perPage - perPage
	size := perPage
	req := scoutx.Compile(q, scoutx.CompileOptions{
		From:           &from,
		Size:           &size,
		NumericFilters: q.NumericFilters(),
	})

	resp, err := e.api.Search(ctx, e.IndexFor(req.Index), req)
	if err != nil {
		return nil, err
	}

	nbPages := float64(resp.Hits.Total.Value) / float64(perPage)
	resp.NbPages = &nbPages
	return resp, nil
}

// BulkUpsert implements scoutx.Engine. Batches are sent one after another;
// a failed batch stops the run and earlier batches stay applied.
func (e *Engine) BulkUpsert(ctx context.Context, records []scoutx.Searchable) error {
	return e.bulk(ctx, records, func(r scoutx.Searchable) BulkOperation {
		return BulkOperation{
			Action: BulkUpdate,
			Index:  e.IndexFor(r.SearchableAs()),
			ID:     r.SearchKey(),
			Doc:    r.ToSearchableMap(),
		}
	})
}

// BulkDelete implements scoutx.Engine with the same batching as BulkUpsert.
func (e *Engine) BulkDelete(ctx context.Context, records []scoutx.Searchable) error {
	return e.bulk(ctx, records, func(r scoutx.Searchable) BulkOperation {
		return BulkOperation{
			Action: BulkDelete,
			Index:  e.IndexFor(r.SearchableAs()),
			ID:     r.SearchKey(),
		}
	})
}

func (e *Engine) bulk(ctx context.Context, records []scoutx.Searchable, op func(scoutx.Searchable) BulkOperation) error {
	for start := 0; start < len(records); start += e.batchSize {
		end := min(start+e.batchSize, len(records))

		ops := make([]BulkOperation, 0, end-start)
		for _, r := range records[start:end] {
			ops = append(ops, op(r))
		}

		if err := e.api.Bulk(ctx, ops); err != nil {
			return errors.Wrapf(err, "bulk batch %d-%d of %d", start, end, len(records))
		}
	}
	return nil
}

// MapProperties implements scoutx.Engine. It updates the mapping of the
// type's index and creates the index with the default dynamic template when
// it does not exist yet. The two steps are not atomic.
func (e *Engine) MapProperties(ctx context.Context, typeName string, properties map[string]any) error {
	index := e.IndexFor(typeName)
	if properties == nil {
		properties = map[string]any{}
	}

	err := e.api.PutMapping(ctx, index, map[string]any{"properties": properties})
	if err == nil {
		return nil
	}
	if !errors.Is(err, scoutx.ErrIndexNotFound) {
		return err
	}

	slog.InfoContext(ctx, "index not found, creating it", "index", index, "type", typeName)
	return e.api.CreateIndex(ctx, index, e.defaultIndexBody(properties))
}

// defaultIndexBody keeps _source and analyzes every dynamic string field.
func (e *Engine) defaultIndexBody(properties map[string]any) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"_source": map[string]any{"enabled": true},
			"dynamic_templates": []any{
				map[string]any{
					"string": map[string]any{
						"match":              "*",
						"match_mapping_type": "string",
						"mapping": map[string]any{
							"type":     "text",
							"analyzer": e.analyzer,
						},
					},
				},
			},
			"properties": properties,
		},
	}
}
