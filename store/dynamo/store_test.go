package dynamo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

// mockDynamoDB serves items from memory. The first unprocessed calls to
// BatchGetItem hand back their last key as unprocessed.
type mockDynamoDB struct {
	items       map[string]Record
	unprocessed int
	// allUnprocessed hands back every key unprocessed.
	allUnprocessed bool
	pageSize       int
	err            error

	batchCalls []int
	scans      []*dynamodb.ScanInput
}

func (m *mockDynamoDB) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if m.err != nil {
		return nil, m.err
	}

	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, req := range params.RequestItems {
		m.batchCalls = append(m.batchCalls, len(req.Keys))

		keys := req.Keys
		if m.allUnprocessed {
			out.UnprocessedKeys = map[string]types.KeysAndAttributes{table: {Keys: keys}}
			continue
		}
		if m.unprocessed > 0 && len(keys) > 1 {
			m.unprocessed--
			out.UnprocessedKeys = map[string]types.KeysAndAttributes{
				table: {Keys: keys[len(keys)-1:]},
			}
			keys = keys[:len(keys)-1]
		}

		for _, key := range keys {
			pk := key["pk"].(*types.AttributeValueMemberS).Value
			sk := key["sk"].(*types.AttributeValueMemberS).Value
			record, ok := m.items[pk]
			if !ok || record.IndexName != sk {
				continue
			}
			item, err := attributevalue.MarshalMap(record)
			if err != nil {
				return nil, err
			}
			out.Responses[table] = append(out.Responses[table], item)
		}
	}
	return out, nil
}

func (m *mockDynamoDB) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.scans = append(m.scans, params)

	ids := make([]string, 0, len(m.items))
	for i := 0; i < len(m.items); i++ {
		ids = append(ids, fmt.Sprintf("id-%03d", i))
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		fmt.Sscanf(params.ExclusiveStartKey["pk"].(*types.AttributeValueMemberS).Value, "id-%03d", &start)
		start++
	}
	end := min(start+m.pageSize, len(ids))

	out := &dynamodb.ScanOutput{}
	skipTrashed := aws.ToString(params.FilterExpression) != "#sk = :sk"
	for _, id := range ids[start:end] {
		record := m.items[id]
		if skipTrashed && record.Trashed() {
			continue
		}
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: ids[end-1]},
		}
	}
	return out, nil
}

func newMock(n int) *mockDynamoDB {
	m := &mockDynamoDB{items: map[string]Record{}, pageSize: 4}
	deletedAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("id-%03d", i)
		record := Record{ID: id, IndexName: "cars", Object: map[string]any{"make": "Toyota", "year": float64(2015 + i%10)}}
		if i%5 == 4 {
			record.DeletedAt = &deletedAt
		}
		m.items[id] = record
	}
	return m
}

func TestRecord_Searchable(t *testing.T) {
	r := Record{ID: "2ABC", IndexName: "cars", Object: map[string]any{"make": "Honda"}}

	if r.SearchKey() != "2ABC" || r.SearchableAs() != "cars" {
		t.Errorf("Unexpected key/index: %s/%s", r.SearchKey(), r.SearchableAs())
	}
	doc := r.ToSearchableMap()
	doc["make"] = "Ford"
	if r.Object["make"] != "Honda" {
		t.Error("Expected ToSearchableMap to return a copy")
	}
	if (Record{}).ToSearchableMap() == nil {
		t.Error("Expected an empty map for a record without object")
	}
	if r.Trashed() {
		t.Error("Expected record without deleted_at to be live")
	}
}

func TestStore_FindByKeys(t *testing.T) {
	tests := []struct {
		name        string
		keys        []string
		withTrashed bool
		expected    int
	}{
		{"live records", []string{"id-000", "id-001", "id-404"}, false, 2},
		{"trashed skipped", []string{"id-003", "id-004"}, false, 1},
		{"trashed included", []string{"id-003", "id-004"}, true, 2},
		{"no keys", nil, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(newMock(10), "records", "cars")

			records, err := store.FindByKeys(context.Background(), tt.keys, tt.withTrashed)
			if err != nil {
				t.Fatalf("FindByKeys failed: %v", err)
			}
			if len(records) != tt.expected {
				t.Errorf("Expected %d records, got %d", tt.expected, len(records))
			}
		})
	}
}

func TestStore_FindByKeys_OtherIndex(t *testing.T) {
	store := NewStore(newMock(3), "records", "boats")

	records, err := store.FindByKeys(context.Background(), []string{"id-000"}, true)
	if err != nil {
		t.Fatalf("FindByKeys failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected records of another index to be ignored, got %d", len(records))
	}
}

func TestStore_FindByKeys_Chunks(t *testing.T) {
	mock := newMock(250)
	store := NewStore(mock, "records", "cars")

	keys := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		keys = append(keys, fmt.Sprintf("id-%03d", i))
	}

	records, err := store.FindByKeys(context.Background(), keys, true)
	if err != nil {
		t.Fatalf("FindByKeys failed: %v", err)
	}
	if len(records) != 250 {
		t.Errorf("Expected 250 records, got %d", len(records))
	}
	expected := []int{100, 100, 50}
	if len(mock.batchCalls) != len(expected) {
		t.Fatalf("Expected batch sizes %v, got %v", expected, mock.batchCalls)
	}
	for i := range expected {
		if mock.batchCalls[i] != expected[i] {
			t.Errorf("Expected batch sizes %v, got %v", expected, mock.batchCalls)
		}
	}
}

func TestStore_FindByKeys_Unprocessed(t *testing.T) {
	mock := newMock(10)
	mock.unprocessed = 1
	store := NewStore(mock, "records", "cars")

	records, err := store.FindByKeys(context.Background(), []string{"id-000", "id-001", "id-002"}, false)
	if err != nil {
		t.Fatalf("FindByKeys failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records after retries, got %d", len(records))
	}
	if len(mock.batchCalls) != 2 || mock.batchCalls[1] != 1 {
		t.Errorf("Expected a retry with the unprocessed key, got %v", mock.batchCalls)
	}
}

func TestStore_FindByKeys_UnprocessedBackoff(t *testing.T) {
	mock := newMock(3)
	mock.allUnprocessed = true
	store := NewStore(mock, "records", "cars")
	store.retryDelay = time.Millisecond

	start := time.Now()
	_, err := store.FindByKeys(context.Background(), []string{"id-000", "id-001"}, false)
	if err == nil {
		t.Fatal("Expected error once retries are exhausted")
	}
	if len(mock.batchCalls) != maxUnprocessedRetries+1 {
		t.Errorf("Expected %d calls, got %d", maxUnprocessedRetries+1, len(mock.batchCalls))
	}
	// 1+2+4+8+16 ms between the attempts
	if elapsed := time.Since(start); elapsed < 31*time.Millisecond {
		t.Errorf("Expected exponential backoff of at least 31ms, took %v", elapsed)
	}
}

func TestStore_FindByKeys_UnprocessedCanceled(t *testing.T) {
	mock := newMock(3)
	mock.allUnprocessed = true
	store := NewStore(mock, "records", "cars")
	store.retryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := store.FindByKeys(ctx, []string{"id-000"}, false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while backing off, got %v", err)
	}
	if len(mock.batchCalls) != 1 {
		t.Errorf("Expected no retry after cancellation, got %d calls", len(mock.batchCalls))
	}
}

func TestStore_FindByKeys_Error(t *testing.T) {
	cause := errors.New("throttled")
	mock := newMock(1)
	mock.err = cause

	_, err := NewStore(mock, "records", "cars").FindByKeys(context.Background(), []string{"id-000"}, false)
	if !errors.Is(err, cause) {
		t.Errorf("Expected throttled error, got %v", err)
	}
}

func TestStore_Each(t *testing.T) {
	mock := newMock(10)
	store := NewStore(mock, "records", "cars")

	var sizes []int
	var total int
	err := store.Each(context.Background(), true, 3, func(records []scoutx.Searchable) error {
		sizes = append(sizes, len(records))
		total += len(records)
		return nil
	})
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if total != 10 {
		t.Errorf("Expected 10 records, got %d", total)
	}
	if len(sizes) != 4 || sizes[3] != 1 {
		t.Errorf("Expected batches of 3,3,3,1, got %v", sizes)
	}
	if len(mock.scans) != 3 {
		t.Errorf("Expected 3 scan pages, got %d", len(mock.scans))
	}
	if aws.ToString(mock.scans[0].TableName) != "records" {
		t.Errorf("Expected table records, got %s", aws.ToString(mock.scans[0].TableName))
	}

	total = 0
	err = store.Each(context.Background(), false, 100, func(records []scoutx.Searchable) error {
		total += len(records)
		return nil
	})
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if total != 8 {
		t.Errorf("Expected 8 live records, got %d", total)
	}
}

func TestStore_EachError(t *testing.T) {
	store := NewStore(newMock(10), "records", "cars")
	stop := errors.New("stop")

	err := store.Each(context.Background(), true, 2, func([]scoutx.Searchable) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Expected stop error, got %v", err)
	}
}
