// Package dynamo keeps searchable records in a single DynamoDB table. Items
// are keyed by pk (the record id) and sk (the index type name), with the
// document under "object" and an optional deleted_at soft-delete marker.
package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/letmevibethatforyou/scoutx"
)

const (
	// maxBatchGet is the DynamoDB limit of keys per BatchGetItem call.
	maxBatchGet = 100

	// maxUnprocessedRetries bounds the resubmission of unprocessed keys.
	maxUnprocessedRetries = 5

	// retryBaseDelay is the first backoff before resubmitting unprocessed
	// keys; it doubles on every attempt.
	retryBaseDelay = 50 * time.Millisecond
)

// Record is a table item.
type Record struct {
	ID        string         `dynamodbav:"pk"`
	IndexName string         `dynamodbav:"sk"`
	Object    map[string]any `dynamodbav:"object"`
	DeletedAt *time.Time     `dynamodbav:"deleted_at,omitempty"`
}

// SearchKey implements scoutx.Searchable.
func (r Record) SearchKey() string { return r.ID }

// SearchableAs implements scoutx.Searchable.
func (r Record) SearchableAs() string { return r.IndexName }

// ToSearchableMap implements scoutx.Searchable.
func (r Record) ToSearchableMap() map[string]any {
	if r.Object == nil {
		return map[string]any{}
	}
	return maps.Clone(r.Object)
}

// Trashed reports whether the record is soft deleted.
func (r Record) Trashed() bool { return r.DeletedAt != nil }

// API is the subset of the DynamoDB client used by Store.
type API interface {
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store implements scoutx.RecordStore and scoutx.Lister for the records of
// one index type name.
type Store struct {
	api        API
	table      string
	indexName  string
	retryDelay time.Duration
}

// NewStore creates a store for the records of indexName in table.
func NewStore(api API, table, indexName string) *Store {
	return &Store{api: api, table: table, indexName: indexName, retryDelay: retryBaseDelay}
}

// FindByKeys implements scoutx.RecordStore using BatchGetItem.
func (s *Store) FindByKeys(ctx context.Context, keys []string, withTrashed bool) ([]scoutx.Searchable, error) {
	out := make([]scoutx.Searchable, 0, len(keys))

	for start := 0; start < len(keys); start += maxBatchGet {
		end := min(start+maxBatchGet, len(keys))

		items, err := s.batchGet(ctx, keys[start:end])
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			var record Record
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal record: %w", err)
			}
			if record.Trashed() && !withTrashed {
				continue
			}
			out = append(out, record)
		}
	}

	return out, nil
}

func (s *Store) batchGet(ctx context.Context, keys []string) ([]map[string]types.AttributeValue, error) {
	request := map[string]types.KeysAndAttributes{
		s.table: {Keys: s.itemKeys(keys)},
	}

	var items []map[string]types.AttributeValue
	for attempt := 0; len(request) > 0; attempt++ {
		if attempt > maxUnprocessedRetries {
			return nil, fmt.Errorf("keys still unprocessed after %d retries", maxUnprocessedRetries)
		}
		if attempt > 0 {
			delay := s.retryDelay << (attempt - 1)
			slog.WarnContext(ctx, "Retrying unprocessed keys",
				"table", s.table,
				"attempt", attempt,
				"count", len(request[s.table].Keys),
				"delay", delay,
			)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("waiting to retry unprocessed keys: %w", ctx.Err())
			case <-timer.C:
			}
		}

		resp, err := s.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return nil, fmt.Errorf("failed to batch get %d items from %s: %w", len(keys), s.table, err)
		}

		items = append(items, resp.Responses[s.table]...)
		request = resp.UnprocessedKeys
	}

	return items, nil
}

func (s *Store) itemKeys(keys []string) []map[string]types.AttributeValue {
	out := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, key := range keys {
		out = append(out, map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: key},
			"sk": &types.AttributeValueMemberS{Value: s.indexName},
		})
	}
	return out
}

// Each implements scoutx.Lister by scanning the table. Scan order is the
// table's internal order, not key order.
func (s *Store) Each(ctx context.Context, withTrashed bool, batchSize int, fn func([]scoutx.Searchable) error) error {
	if batchSize < 1 {
		batchSize = scoutx.DefaultChunkSize
	}

	input := &dynamodb.ScanInput{
		TableName:                aws.String(s.table),
		FilterExpression:         aws.String("#sk = :sk"),
		ExpressionAttributeNames: map[string]string{"#sk": "sk"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk": &types.AttributeValueMemberS{Value: s.indexName},
		},
	}
	if !withTrashed {
		input.FilterExpression = aws.String("#sk = :sk AND attribute_not_exists(deleted_at)")
	}

	batch := make([]scoutx.Searchable, 0, batchSize)
	paginator := dynamodb.NewScanPaginator(s.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", s.table, err)
		}

		var records []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return fmt.Errorf("failed to unmarshal records: %w", err)
		}

		for _, record := range records {
			batch = append(batch, record)
			if len(batch) < batchSize {
				continue
			}
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]scoutx.Searchable, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
