package scoutx

// CompiledRequest is the Elasticsearch search body built from a Query.
// It is created per execution and not retained.
type CompiledRequest struct {
	// Index is the index type name the request targets. It is not part of the body.
	Index   string               `json:"-"`
	Query   BoolQuery            `json:"query"`
	Sort    []map[string]any     `json:"sort,omitempty"`
	Suggest map[string]Suggester `json:"suggest,omitempty"`
	Aggs    map[string]any       `json:"aggs,omitempty"`
	From    *int                 `json:"from,omitempty"`
	Size    *int                 `json:"size,omitempty"`
}

// BoolQuery wraps the bool compound query.
type BoolQuery struct {
	Bool Bool `json:"bool"`
}

// Bool combines scoring must clauses with a non-scoring filter section.
type Bool struct {
	Must   []map[string]any `json:"must"`
	Filter map[string]any   `json:"filter,omitempty"`
}

// CompileOptions carries the per-call parts of a request.
type CompileOptions struct {
	// From is the offset of the first hit; nil omits it.
	From *int
	// Size is the number of hits; nil omits it.
	Size *int
	// NumericFilters are appended to the must section after the text query.
	NumericFilters []map[string]any
}

// Compile turns q into a search request. It does not modify q.
func Compile(q *Query, opts CompileOptions) *CompiledRequest {
	keyword := q.Text
	if keyword == "" {
		keyword = "*"
	}

	must := make([]map[string]any, 0, 1+len(opts.NumericFilters))
	must = append(must, map[string]any{
		"query_string": map[string]any{"query": keyword},
	})
	must = append(must, opts.NumericFilters...)

	req := &CompiledRequest{
		Index: q.Index,
		Query: BoolQuery{Bool: Bool{Must: must}},
		Sort:  compileSort(q),
		From:  opts.From,
		Size:  opts.Size,
	}

	if len(q.Filters) > 0 {
		req.Query.Bool.Filter = q.Filters
	}
	if len(q.Suggestions) > 0 {
		req.Suggest = q.Suggestions
	}
	if len(q.Aggs) > 0 {
		req.Aggs = q.Aggs
	}

	return req
}

// compileSort ranks by score first when there is a text query. It returns
// nil when there is nothing to sort on so the engine default applies.
func compileSort(q *Query) []map[string]any {
	var sort []map[string]any

	if q.Text != "" {
		sort = append(sort, map[string]any{"_score": string(Desc)})
	}

	for _, order := range q.Orders {
		if order.Script != nil {
			sort = append(sort, map[string]any{order.Field: order.Script})
			continue
		}
		sort = append(sort, map[string]any{order.Field: string(order.Direction)})
	}

	return sort
}
