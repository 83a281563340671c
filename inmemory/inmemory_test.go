package inmemory

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	e := New()
	docs := []struct {
		id   string
		json string
	}{
		{"1", `{"name": "Alice", "age": 30, "city": "New York", "tags": ["admin", "staff"]}`},
		{"2", `{"name": "Bob", "age": 25, "city": "Boston", "tags": ["staff"]}`},
		{"3", `{"name": "Charlie", "age": 35, "city": "New York"}`},
		{"4", `{"name": "Diana", "age": 28, "city": "Denver"}`},
	}
	for _, d := range docs {
		if err := e.AddJSON("users", d.id, []byte(d.json)); err != nil {
			t.Fatalf("AddJSON failed: %v", err)
		}
	}
	return e
}

func hitIDs(resp *scoutx.Response) []string {
	return scoutx.MapIDs(resp)
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngine_AddRemove(t *testing.T) {
	e := New()
	e.AddDocument("users", Document{ID: "1", Fields: map[string]interface{}{"name": "Alice"}})
	e.AddDocument("users", Document{ID: "1", Fields: map[string]interface{}{"name": "Alicia"}})
	e.AddDocument("users", Document{ID: "2", Fields: map[string]interface{}{"name": "Bob"}})

	if e.Size("users") != 2 {
		t.Errorf("Expected 2 documents, got %d", e.Size("users"))
	}
	if !e.RemoveDocument("users", "1") {
		t.Error("Expected document 1 to be removed")
	}
	if e.RemoveDocument("users", "1") {
		t.Error("Expected second removal to report false")
	}
	if e.RemoveDocument("missing", "1") {
		t.Error("Expected removal from missing index to report false")
	}
	if e.Size("users") != 1 {
		t.Errorf("Expected 1 document, got %d", e.Size("users"))
	}
}

func TestEngine_AddJSONInvalid(t *testing.T) {
	e := New()
	if err := e.AddJSON("users", "1", []byte(`{invalid`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestEngine_Search(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name     string
		query    *scoutx.Query
		expected []string
	}{
		{
			name:     "match all keeps insertion order",
			query:    scoutx.NewQuery("").Within("users"),
			expected: []string{"1", "2", "3", "4"},
		},
		{
			name:     "text",
			query:    scoutx.NewQuery("new york").Within("users"),
			expected: []string{"1", "3"},
		},
		{
			name:     "where eq",
			query:    scoutx.NewQuery("").Within("users").Where(scoutx.Eq("city", "Boston")),
			expected: []string{"2"},
		},
		{
			name:     "where eq on list field",
			query:    scoutx.NewQuery("").Within("users").Where(scoutx.Eq("tags", "staff")),
			expected: []string{"1", "2"},
		},
		{
			name:     "where in",
			query:    scoutx.NewQuery("").Within("users").Where(scoutx.In("name", "Bob", "Diana")),
			expected: []string{"2", "4"},
		},
		{
			name:     "where range",
			query:    scoutx.NewQuery("").Within("users").Where(scoutx.Range("age", 28, 30)),
			expected: []string{"1", "4"},
		},
		{
			name: "filter",
			query: scoutx.NewQuery("").Within("users").
				Filter(map[string]any{"range": map[string]any{"age": map[string]any{"gt": 28}}}),
			expected: []string{"1", "3"},
		},
		{
			name:     "order",
			query:    scoutx.NewQuery("").Within("users").OrderBy("age", "desc"),
			expected: []string{"3", "1", "4", "2"},
		},
		{
			name:     "take",
			query:    scoutx.NewQuery("").Within("users").OrderBy("name", "asc").Take(2),
			expected: []string{"1", "2"},
		},
		{
			name:     "unknown index",
			query:    scoutx.NewQuery("").Within("orders"),
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if got := hitIDs(resp); !equalIDs(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestEngine_SearchRandomOrder(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Search(context.Background(), scoutx.NewQuery("").Within("users").InRandomOrder())
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Hits.Total.Value != 4 || len(resp.Hits.Hits) != 4 {
		t.Errorf("Expected all 4 users, got %d", len(resp.Hits.Hits))
	}
}

func TestEngine_Paginate(t *testing.T) {
	e := newTestEngine(t)
	q := scoutx.NewQuery("").Within("users").OrderBy("age", "asc")

	resp, err := e.Paginate(context.Background(), q, 3, 2)
	if err != nil {
		t.Fatalf("Paginate failed: %v", err)
	}
	if got := hitIDs(resp); !equalIDs(got, []string{"3"}) {
		t.Errorf("Expected [3], got %v", got)
	}
	if resp.Hits.Total.Value != 4 {
		t.Errorf("Expected total 4, got %d", resp.Hits.Total.Value)
	}
	if resp.NbPages == nil || *resp.NbPages != 4.0/3.0 {
		t.Errorf("Expected nbPages 4/3, got %v", resp.NbPages)
	}

	_, err = e.Paginate(context.Background(), q, 0, 1)
	if !errors.Is(err, scoutx.ErrInvalidPage) {
		t.Errorf("Expected ErrInvalidPage, got %v", err)
	}
}

func TestEngine_BulkUpsertMergesFields(t *testing.T) {
	e := New()
	ctx := context.Background()

	first := Record{ID: "1", Index: "users", Fields: map[string]interface{}{"name": "Alice", "age": 30}}
	second := Record{ID: "1", Index: "users", Fields: map[string]interface{}{"age": 31}}

	if err := e.BulkUpsert(ctx, []scoutx.Searchable{first}); err != nil {
		t.Fatalf("BulkUpsert failed: %v", err)
	}
	if err := e.BulkUpsert(ctx, []scoutx.Searchable{second}); err != nil {
		t.Fatalf("BulkUpsert failed: %v", err)
	}

	resp, err := e.Search(ctx, scoutx.NewQuery("alice").Within("users"))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(resp.Hits.Hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(resp.Hits.Hits))
	}
	if string(resp.Hits.Hits[0].Source) != `{"age":31,"name":"Alice"}` {
		t.Errorf("Expected merged source, got %s", resp.Hits.Hits[0].Source)
	}
	if e.BulkRequests != 2 {
		t.Errorf("Expected 2 bulk requests, got %d", e.BulkRequests)
	}

	if err := e.BulkDelete(ctx, []scoutx.Searchable{first}); err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if e.Size("users") != 0 {
		t.Errorf("Expected empty index, got %d", e.Size("users"))
	}
}

func TestEngine_MapProperties(t *testing.T) {
	e := New()
	ctx := context.Background()

	if err := e.MapProperties(ctx, "users", map[string]any{"age": map[string]any{"type": "integer"}}); err != nil {
		t.Fatalf("MapProperties failed: %v", err)
	}
	if err := e.MapProperties(ctx, "users", map[string]any{"name": map[string]any{"type": "text"}}); err != nil {
		t.Fatalf("MapProperties failed: %v", err)
	}

	props, ok := e.Mapping("users")
	if !ok || len(props) != 2 {
		t.Errorf("Expected 2 mapped properties, got %v", props)
	}
	if _, ok := e.Mapping("orders"); ok {
		t.Error("Expected no mapping for orders")
	}
}

func TestEngine_Canceled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, scoutx.NewQuery("").Within("users"))
	if !errors.Is(err, scoutx.ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", err)
	}
}
