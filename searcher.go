package scoutx

import (
	"context"

	"github.com/cockroachdb/errors"
)

// DefaultPerPage is the page size used when Paginate gets a non-positive one.
const DefaultPerPage = 15

// Searcher runs queries for one model type and resolves hits to its records.
type Searcher struct {
	engine  Engine
	store   RecordStore
	index   string
	perPage int
}

// NewSearcher creates a searcher for records stored under index.
func NewSearcher(engine Engine, store RecordStore, index string) *Searcher {
	return &Searcher{
		engine:  engine,
		store:   store,
		index:   index,
		perPage: DefaultPerPage,
	}
}

// For creates a searcher using model's index type name.
func For(engine Engine, store RecordStore, model Searchable) *Searcher {
	return NewSearcher(engine, store, model.SearchableAs())
}

// WithPerPage sets the default page size.
func (s *Searcher) WithPerPage(perPage int) *Searcher {
	if perPage > 0 {
		s.perPage = perPage
	}
	return s
}

// Raw executes q and returns the engine response unmodified.
func (s *Searcher) Raw(ctx context.Context, q *Query) (*Response, error) {
	return s.engine.Search(ctx, s.target(q))
}

// Get executes q and returns the matching records in engine order.
func (s *Searcher) Get(ctx context.Context, q *Query) ([]Searchable, error) {
	resp, err := s.Raw(ctx, q)
	if err != nil {
		return nil, err
	}
	return Map(ctx, resp, s.store, q.IncludeTrashed)
}

// Keys executes q and returns the matching document ids in engine order.
func (s *Searcher) Keys(ctx context.Context, q *Query) ([]string, error) {
	resp, err := s.Raw(ctx, q)
	if err != nil {
		return nil, err
	}
	return MapIDs(resp), nil
}

// Paginate executes q for one page. Page links echo the query text, filters
// and orders of q.
func (s *Searcher) Paginate(ctx context.Context, q *Query, perPage, page int, opts ...PageOption) (*Page, error) {
	if perPage <= 0 {
		perPage = s.perPage
	}
	if page <= 0 {
		page = 1
	}

	resp, err := s.engine.Paginate(ctx, s.target(q), perPage, page)
	if err != nil {
		return nil, err
	}

	records, err := Map(ctx, resp, s.store, q.IncludeTrashed)
	if err != nil {
		return nil, err
	}

	opts = append([]PageOption{WithQueryState(q)}, opts...)
	return NewPage(records, TotalCount(resp), perPage, page, opts...), nil
}

// Aggregate executes q with body as its aggregation and a zero hit size and
// returns aggregations.<field>.value. q itself is left unchanged.
func (s *Searcher) Aggregate(ctx context.Context, q *Query, field string, body map[string]any) (float64, error) {
	agg := *q
	agg.Aggs = body
	agg.Take(0)

	resp, err := s.Raw(ctx, &agg)
	if err != nil {
		return 0, err
	}
	value, err := AggregationValue(resp, field)
	if err != nil {
		return 0, errors.Wrapf(err, "aggregate %s", field)
	}
	return value, nil
}

// Suggest executes a suggestion query for text on field and returns the
// suggester results.
func (s *Searcher) Suggest(ctx context.Context, field, text string) ([]Suggestion, error) {
	resp, err := s.Raw(ctx, SuggestQuery(field, text))
	if err != nil {
		return nil, err
	}
	return resp.Suggest[field+"-suggestion"], nil
}

func (s *Searcher) target(q *Query) *Query {
	if q.Index == "" {
		q.Index = s.index
	}
	return q
}
