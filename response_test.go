package scoutx

import (
	"encoding/json"
	"testing"
)

func TestResponse_TotalForms(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		value    int64
		relation string
	}{
		{
			name:     "object",
			body:     `{"hits":{"total":{"value":95,"relation":"eq"},"hits":[]}}`,
			value:    95,
			relation: "eq",
		},
		{
			name:     "lower bound",
			body:     `{"hits":{"total":{"value":10000,"relation":"gte"},"hits":[]}}`,
			value:    10000,
			relation: "gte",
		},
		{
			name:     "plain number",
			body:     `{"hits":{"total":42,"hits":[]}}`,
			value:    42,
			relation: "eq",
		},
		{
			name: "null",
			body: `{"hits":{"total":null,"hits":[]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if resp.Hits.Total.Value != tt.value || resp.Hits.Total.Relation != tt.relation {
				t.Errorf("Expected %d/%q, got %+v", tt.value, tt.relation, resp.Hits.Total)
			}
		})
	}
}

func TestResponse_InvalidTotal(t *testing.T) {
	var resp Response
	if err := json.Unmarshal([]byte(`{"hits":{"total":"many"}}`), &resp); err == nil {
		t.Error("Expected error for string total")
	}
}

func TestResponse_Hits(t *testing.T) {
	body := `{
		"took": 3,
		"timed_out": false,
		"hits": {
			"total": {"value": 2, "relation": "eq"},
			"max_score": 1.5,
			"hits": [
				{"_index": "shop_products", "_id": "7", "_score": 1.5, "_source": {"name": "laptop"}},
				{"_index": "shop_products", "_id": "3", "_score": null}
			]
		},
		"suggest": {
			"title-suggestion": [{"text": "lapto", "offset": 0, "length": 5, "options": [{"text": "laptop", "score": 0.8, "freq": 4}]}]
		}
	}`

	var resp Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if resp.Took != 3 || resp.Hits.MaxScore == nil || *resp.Hits.MaxScore != 1.5 {
		t.Errorf("Unexpected response header: %+v", resp)
	}
	if got := MapIDs(&resp); len(got) != 2 || got[0] != "7" || got[1] != "3" {
		t.Errorf("Expected [7 3], got %v", got)
	}
	if resp.Hits.Hits[1].Score != nil {
		t.Errorf("Expected nil score, got %v", *resp.Hits.Hits[1].Score)
	}
	options := resp.Suggest["title-suggestion"][0].Options
	if len(options) != 1 || options[0].Text != "laptop" || options[0].Freq != 4 {
		t.Errorf("Unexpected suggestion options: %+v", options)
	}
}
