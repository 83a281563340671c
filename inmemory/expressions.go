package inmemory

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

// ErrUnsupportedClause is returned for query DSL the in-memory engine does not evaluate.
var ErrUnsupportedClause = errors.New("inmemory: unsupported clause")

// evaluateMust scores doc against the must clauses. The query_string clause
// provides the score; every other clause must match.
func evaluateMust(doc Document, must []map[string]any) (float64, bool, error) {
	score := 1.0
	for _, clause := range must {
		if qs, ok := clause["query_string"].(map[string]any); ok {
			query, _ := qs["query"].(string)
			score = scoreDocument(doc, query)
			if score == 0 {
				return 0, false, nil
			}
			continue
		}
		ok, err := evaluateClause(doc, clause)
		if err != nil || !ok {
			return 0, false, err
		}
	}
	return score, true, nil
}

// matchesFilter checks the bool filter section. Each key is a clause kind.
func matchesFilter(doc Document, filter map[string]any) (bool, error) {
	for kind, body := range filter {
		ok, err := evaluateClause(doc, map[string]any{kind: body})
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// evaluateClause evaluates a single-kind clause such as {"term": {"f": v}}.
func evaluateClause(doc Document, clause map[string]any) (bool, error) {
	for kind, raw := range clause {
		body, ok := raw.(map[string]any)
		if !ok {
			return false, errors.Wrapf(ErrUnsupportedClause, "%s body is %T", kind, raw)
		}
		for field, want := range body {
			var matched bool
			switch kind {
			case "term", "match", "match_phrase":
				matched = evaluateEq(doc, field, want)
			case "terms":
				matched = evaluateIn(doc, field, want)
			case "range":
				bounds, _ := want.(map[string]any)
				matched = evaluateRange(doc, field, bounds)
			case "exists":
				name, _ := want.(string)
				_, matched = doc.Fields[name]
			default:
				return false, errors.Wrapf(ErrUnsupportedClause, "%s", kind)
			}
			if !matched {
				return false, nil
			}
		}
	}
	return true, nil
}

// evaluateEq matches a field value, or any element of a list field.
func evaluateEq(doc Document, field string, want interface{}) bool {
	docValue, exists := doc.Fields[field]
	if !exists {
		return want == nil
	}
	if list, ok := docValue.([]interface{}); ok {
		for _, item := range list {
			if compareEqual(item, want) {
				return true
			}
		}
		return false
	}
	return compareEqual(docValue, want)
}

// evaluateIn matches when the field equals any of the wanted values.
func evaluateIn(doc Document, field string, want interface{}) bool {
	values, ok := want.([]interface{})
	if !ok {
		return evaluateEq(doc, field, want)
	}
	for _, v := range values {
		if evaluateEq(doc, field, v) {
			return true
		}
	}
	return false
}

// evaluateRange evaluates gt/gte/lt/lte bounds.
func evaluateRange(doc Document, field string, bounds map[string]any) bool {
	docValue, exists := doc.Fields[field]
	if !exists {
		return false
	}
	for op, bound := range bounds {
		cmp := compareValues(docValue, bound)
		switch op {
		case "gt":
			if cmp <= 0 {
				return false
			}
		case "gte":
			if cmp < 0 {
				return false
			}
		case "lt":
			if cmp >= 0 {
				return false
			}
		case "lte":
			if cmp > 0 {
				return false
			}
		}
	}
	return true
}

// aggregate computes single-value metric aggregations over the matches.
func aggregate(matches []scoredDocument, aggs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(aggs))
	for name, raw := range aggs {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedClause, "aggregation %s body is %T", name, raw)
		}
		for kind, params := range body {
			p, _ := params.(map[string]any)
			field, _ := p["field"].(string)

			var values []float64
			for _, m := range matches {
				if f, ok := toFloat64(m.document.Fields[field]); ok {
					values = append(values, f)
				}
			}

			value, err := metric(kind, values)
			if err != nil {
				return nil, errors.Wrapf(err, "aggregation %s", name)
			}
			out[name] = map[string]any{"value": value}
		}
	}
	return out, nil
}

// metric returns nil for avg/min/max over no values, as Elasticsearch does.
func metric(kind string, values []float64) (any, error) {
	switch kind {
	case "value_count":
		return float64(len(values)), nil
	case "sum":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, nil
	}

	if len(values) == 0 {
		switch kind {
		case "avg", "min", "max":
			return nil, nil
		}
		return nil, errors.Wrapf(ErrUnsupportedClause, "%s", kind)
	}

	switch kind {
	case "avg":
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case "min":
		m := math.Inf(1)
		for _, v := range values {
			m = math.Min(m, v)
		}
		return m, nil
	case "max":
		m := math.Inf(-1)
		for _, v := range values {
			m = math.Max(m, v)
		}
		return m, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedClause, "%s", kind)
	}
}

// suggest offers the distinct words of the suggester field that share the
// first letter of the text but differ from it.
func suggest(documents []Document, s scoutx.Suggester) []scoutx.Suggestion {
	text := strings.ToLower(strings.TrimSpace(s.Text))
	entry := scoutx.Suggestion{Text: s.Text, Length: len(s.Text), Options: []scoutx.SuggestOption{}}
	if text == "" {
		return []scoutx.Suggestion{entry}
	}

	freq := map[string]int64{}
	for _, doc := range documents {
		value, ok := doc.Fields[s.Term.Field].(string)
		if !ok {
			continue
		}
		for _, word := range strings.Fields(strings.ToLower(value)) {
			if word != text && word[0] == text[0] {
				freq[word]++
			}
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	for _, w := range words {
		entry.Options = append(entry.Options, scoutx.SuggestOption{Text: w, Score: 1, Freq: freq[w]})
	}
	return []scoutx.Suggestion{entry}
}

// compareEqual checks if two values are equal.
func compareEqual(v1, v2 interface{}) bool {
	if v1 == nil || v2 == nil {
		return v1 == v2
	}

	if f1, ok1 := toFloat64(v1); ok1 {
		if f2, ok2 := toFloat64(v2); ok2 {
			return f1 == f2
		}
	}

	return fmt.Sprintf("%v", v1) == fmt.Sprintf("%v", v2)
}

// toFloat64 attempts to convert a value to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
