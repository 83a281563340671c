package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/letmevibethatforyou/scoutx"
)

func TestBuildQuery(t *testing.T) {
	q, err := buildQuery("camry", []string{"make=Toyota", " color = Red "}, []string{"year:desc", "model"})
	if err != nil {
		t.Fatalf("buildQuery failed: %v", err)
	}

	if q.Text != "camry" {
		t.Errorf("Expected text camry, got %q", q.Text)
	}
	if len(q.Wheres) != 2 {
		t.Fatalf("Expected 2 wheres, got %d", len(q.Wheres))
	}
	if eq, ok := q.Wheres[1].(scoutx.EqExpr); !ok || eq.Field != "color" || eq.Value != "Red" {
		t.Errorf("Unexpected where: %#v", q.Wheres[1])
	}

	expected := []scoutx.Order{
		{Field: "year", Direction: scoutx.Desc},
		{Field: "model", Direction: scoutx.Asc},
	}
	if len(q.Orders) != len(expected) {
		t.Fatalf("Expected %d orders, got %d", len(expected), len(q.Orders))
	}
	for i, o := range expected {
		if q.Orders[i].Field != o.Field || q.Orders[i].Direction != o.Direction {
			t.Errorf("order %d: expected %+v, got %+v", i, o, q.Orders[i])
		}
	}
}

func TestBuildQuery_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		sorts   []string
	}{
		{name: "filter without value", filters: []string{"make="}},
		{name: "filter without separator", filters: []string{"make"}},
		{name: "filter without field", filters: []string{"=Toyota"}},
		{name: "sort without field", sorts: []string{":desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildQuery("", tt.filters, tt.sorts); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSourceStore(t *testing.T) {
	records, err := sourceStore{}.FindByKeys(context.Background(), []string{"a", "b"}, false)
	if err != nil {
		t.Fatalf("FindByKeys failed: %v", err)
	}
	if len(records) != 2 || records[1].SearchKey() != "b" || records[1].ToSearchableMap()["id"] != "b" {
		t.Errorf("Unexpected records: %v", records)
	}
}
