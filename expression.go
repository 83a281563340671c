package scoutx

import "reflect"

// Expression represents a where predicate that compiles into a scoring
// "must" clause next to the full-text query.
type Expression interface {
	// Clause returns the engine DSL for the predicate.
	Clause() map[string]any
	// expr is a marker method to distinguish expressions from other values.
	expr()
}

// baseExpr provides the expr marker method for all expression types.
type baseExpr struct{}

func (baseExpr) expr() {}

// EqExpr represents an exact phrase match on a field.
type EqExpr struct {
	baseExpr
	// Field is the name of the field to compare.
	Field string
	// Value is the value to compare against.
	Value interface{}
}

// Clause implements the Expression interface for EqExpr.
func (e EqExpr) Clause() map[string]any {
	return map[string]any{"match_phrase": map[string]any{e.Field: e.Value}}
}

// Eq creates an equality expression. A slice value creates an InExpr instead.
func Eq(field string, value interface{}) Expression {
	if values, ok := asList(value); ok {
		return InExpr{Field: field, Values: values}
	}
	return EqExpr{Field: field, Value: value}
}

// InExpr represents an any-of match on a field.
type InExpr struct {
	baseExpr
	// Field is the name of the field to compare.
	Field string
	// Values are the accepted values.
	Values []interface{}
}

// Clause implements the Expression interface for InExpr.
func (i InExpr) Clause() map[string]any {
	values := make([]interface{}, len(i.Values))
	copy(values, i.Values)
	return map[string]any{"terms": map[string]any{i.Field: values}}
}

// In creates an inclusion expression.
func In(field string, values ...interface{}) Expression {
	return InExpr{Field: field, Values: values}
}

// RangeExpr represents a range comparison expression.
type RangeExpr struct {
	baseExpr
	// Field is the name of the field to compare.
	Field string
	// Min is the minimum value of the range (inclusive). Can be nil for no lower bound.
	Min interface{}
	// Max is the maximum value of the range (inclusive). Can be nil for no upper bound.
	Max interface{}
}

// Clause implements the Expression interface for RangeExpr.
func (r RangeExpr) Clause() map[string]any {
	bounds := map[string]any{}
	if r.Min != nil {
		bounds["gte"] = r.Min
	}
	if r.Max != nil {
		bounds["lte"] = r.Max
	}
	return map[string]any{"range": map[string]any{r.Field: bounds}}
}

// Range creates a range comparison expression.
func Range(field string, min, max interface{}) Expression {
	return RangeExpr{Field: field, Min: min, Max: max}
}

// asList reports whether v is a slice or array and returns its elements.
// Byte slices are treated as scalars.
func asList(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]interface{}); ok {
		return append([]interface{}(nil), list...), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
