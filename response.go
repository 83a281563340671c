package scoutx

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Response is the raw search response returned by the engine.
type Response struct {
	// Took is the time the engine spent on the search in milliseconds.
	Took int64 `json:"took"`

	// TimedOut reports whether the engine stopped early.
	TimedOut bool `json:"timed_out"`

	// Hits holds the total and the ranked hits.
	Hits Hits `json:"hits"`

	// Aggregations holds the aggregation results keyed by name.
	Aggregations map[string]any `json:"aggregations,omitempty"`

	// Suggest holds the suggester results keyed by name.
	Suggest map[string][]Suggestion `json:"suggest,omitempty"`

	// NbPages is total/perPage, set by Paginate only. It is not rounded.
	NbPages *float64 `json:"nbPages,omitempty"`
}

// Hits is the hits section of a response.
type Hits struct {
	Total    TotalHits `json:"total"`
	MaxScore *float64  `json:"max_score"`
	Hits     []Hit     `json:"hits"`
}

// TotalHits is the engine-reported hit count.
type TotalHits struct {
	Value    int64  `json:"value"`
	Relation string `json:"relation,omitempty"`
}

// UnmarshalJSON accepts both the plain number and the {value, relation} forms.
func (t *TotalHits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = TotalHits{}
		return nil
	}
	if len(data) > 0 && data[0] != '{' {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrap(err, "failed to decode hits total")
		}
		*t = TotalHits{Value: n, Relation: "eq"}
		return nil
	}
	type plain TotalHits
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrap(err, "failed to decode hits total")
	}
	*t = TotalHits(p)
	return nil
}

// Hit is a single ranked document.
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Score  *float64        `json:"_score"`
	Source json.RawMessage `json:"_source,omitempty"`
	Sort   []any           `json:"sort,omitempty"`
}

// Suggestion is one entry of a suggester result.
type Suggestion struct {
	Text    string          `json:"text"`
	Offset  int             `json:"offset"`
	Length  int             `json:"length"`
	Options []SuggestOption `json:"options"`
}

// SuggestOption is a suggested replacement term.
type SuggestOption struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Freq  int64   `json:"freq"`
}
