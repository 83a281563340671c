package scoutx

import "strings"

// Order is a single sort clause. Script is set for scripted sorts such as
// InRandomOrder and takes the place of Direction in the compiled request.
type Order struct {
	Field     string         `json:"column"`
	Direction Direction      `json:"direction,omitempty"`
	Script    map[string]any `json:"script,omitempty"`
}

// Suggester is a term suggestion request.
type Suggester struct {
	Text string      `json:"text"`
	Term SuggestTerm `json:"term"`
}

// SuggestTerm names the field a term suggester reads from.
type SuggestTerm struct {
	Field string `json:"field"`
}

// Query accumulates search intent. It is created per search call and is not
// safe for concurrent use.
type Query struct {
	// Text is the free-text query; empty matches everything.
	Text string
	// Index overrides the index type name taken from the model.
	Index string
	// Filters holds the non-scoring bool filter section.
	Filters map[string]any
	// Orders holds the sort clauses in order.
	Orders []Order
	// Wheres holds predicates compiled into extra must clauses.
	Wheres []Expression
	// Suggestions holds term suggesters keyed by name.
	Suggestions map[string]Suggester
	// Aggs holds the engine-native aggregation body.
	Aggs map[string]any
	// IncludeTrashed makes record lookup include soft-deleted rows.
	IncludeTrashed bool
	// Limit caps the size of a raw search. Nil leaves it to the engine.
	Limit *int
}

// NewQuery creates a query for the given free text.
func NewQuery(text string) *Query {
	return &Query{Text: text}
}

// SuggestQuery creates a query for text with a suggester on field.
func SuggestQuery(field, text string) *Query {
	return NewQuery(text).Suggest(field, text)
}

// Within sets the index type name searched, overriding the model's.
func (q *Query) Within(index string) *Query {
	q.Index = index
	return q
}

// Filter deep-merges clauses into the filter section. Lists under the same
// key are concatenated, nested maps are merged and scalars overwrite.
func (q *Query) Filter(clauses map[string]any) *Query {
	if q.Filters == nil {
		q.Filters = make(map[string]any, len(clauses))
	}
	mergeInto(q.Filters, clauses)
	return q
}

// Where adds predicates compiled into the must section.
func (q *Query) Where(exprs ...Expression) *Query {
	q.Wheres = append(q.Wheres, exprs...)
	return q
}

// OrderBy appends a sort clause. Any casing of "asc" sorts ascending,
// every other value sorts descending.
func (q *Query) OrderBy(field, direction string) *Query {
	q.Orders = append(q.Orders, Order{Field: field, Direction: normalizeDirection(direction)})
	return q
}

// OrderByClauses replaces every sort clause with orders.
func (q *Query) OrderByClauses(orders []Order) *Query {
	q.Orders = make([]Order, 0, len(orders))
	for _, order := range orders {
		if order.Script == nil {
			order.Direction = normalizeDirection(string(order.Direction))
		}
		q.Orders = append(q.Orders, order)
	}
	return q
}

// OrderByScript appends a scripted sort clause under the _script pseudo-field.
func (q *Query) OrderByScript(script map[string]any) *Query {
	q.Orders = append(q.Orders, Order{Field: "_script", Script: script})
	return q
}

// InRandomOrder appends a scripted sort evaluating Math.random() per
// document. Elasticsearch specific.
func (q *Query) InRandomOrder() *Query {
	return q.OrderByScript(map[string]any{
		"script": "Math.random()",
		"type":   "number",
	})
}

// Suggest registers a term suggester named "{field}-suggestion".
func (q *Query) Suggest(field, text string) *Query {
	if q.Suggestions == nil {
		q.Suggestions = make(map[string]Suggester)
	}
	q.Suggestions[field+"-suggestion"] = Suggester{
		Text: text,
		Term: SuggestTerm{Field: field},
	}
	return q
}

// WithTrashed includes soft-deleted records when resolving hits.
// The engine's document set is not affected.
func (q *Query) WithTrashed() *Query {
	q.IncludeTrashed = true
	return q
}

// Take caps the number of hits returned by a raw search.
func (q *Query) Take(limit int) *Query {
	q.Limit = &limit
	return q
}

// NumericFilters returns the must clauses derived from the where predicates.
func (q *Query) NumericFilters() []map[string]any {
	if len(q.Wheres) == 0 {
		return nil
	}
	clauses := make([]map[string]any, 0, len(q.Wheres))
	for _, w := range q.Wheres {
		clauses = append(clauses, w.Clause())
	}
	return clauses
}

func normalizeDirection(direction string) Direction {
	if strings.EqualFold(direction, string(Asc)) {
		return Asc
	}
	return Desc
}

// mergeInto merges src into dst in place.
func mergeInto(dst, src map[string]any) {
	for key, value := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = cloneValue(value)
			continue
		}
		dst[key] = mergeValues(existing, value)
	}
}

func mergeValues(existing, incoming any) any {
	if left, ok := existing.(map[string]any); ok {
		if right, ok := incoming.(map[string]any); ok {
			mergeInto(left, right)
			return left
		}
	}
	if left, ok := asList(existing); ok {
		if right, ok := asList(incoming); ok {
			return append(left, right...)
		}
	}
	return cloneValue(incoming)
}

// cloneValue copies maps and lists so later merges never touch caller data.
func cloneValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = cloneValue(val)
		}
		return out
	}
	if list, ok := asList(v); ok {
		for i, val := range list {
			list[i] = cloneValue(val)
		}
		return list
	}
	return v
}
