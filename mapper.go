package scoutx

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Map resolves the hits of resp to records from store. The result follows
// the engine's hit order; hits without a matching record are dropped and the
// total is left untouched.
func Map(ctx context.Context, resp *Response, store RecordStore, withTrashed bool) ([]Searchable, error) {
	if TotalCount(resp) == 0 {
		return []Searchable{}, nil
	}

	keys := MapIDs(resp)
	if len(keys) == 0 {
		return []Searchable{}, nil
	}

	records, err := store.FindByKeys(ctx, keys, withTrashed)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %d records", len(keys))
	}

	byKey := make(map[string]Searchable, len(records))
	for _, record := range records {
		byKey[record.SearchKey()] = record
	}

	out := make([]Searchable, 0, len(keys))
	for _, key := range keys {
		if record, ok := byKey[key]; ok {
			out = append(out, record)
		}
	}

	return out, nil
}

// MapIDs returns the document ids of resp in hit order.
func MapIDs(resp *Response) []string {
	if resp == nil {
		return []string{}
	}
	ids := make([]string, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids
}

// TotalCount returns the engine-reported total. It may exceed the number of
// records Map resolves.
func TotalCount(resp *Response) int64 {
	if resp == nil {
		return 0
	}
	return resp.Hits.Total.Value
}

// AggregationValue returns aggregations.<field>.value. Dots in field address
// nested aggregations. A null value, as returned for an average over no
// documents, yields zero.
func AggregationValue(resp *Response, field string) (float64, error) {
	if resp == nil || resp.Aggregations == nil {
		return 0, errors.Wrapf(ErrMalformedAggregation, "response has no aggregations for %q", field)
	}

	var node any = resp.Aggregations
	for _, part := range strings.Split(field, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return 0, errors.Wrapf(ErrMalformedAggregation, "aggregation %q not found", field)
		}
		if node, ok = m[part]; !ok {
			return 0, errors.Wrapf(ErrMalformedAggregation, "aggregation %q not found", field)
		}
	}

	agg, ok := node.(map[string]any)
	if !ok {
		return 0, errors.Wrapf(ErrMalformedAggregation, "aggregation %q is not an object", field)
	}
	value, ok := agg["value"]
	if !ok {
		return 0, errors.Wrapf(ErrMalformedAggregation, "aggregation %q has no value", field)
	}

	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, errors.Wrapf(ErrMalformedAggregation, "aggregation %q value is %T, not a number", field, value)
	}
}
