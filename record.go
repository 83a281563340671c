package scoutx

import "context"

// Searchable is implemented by every record type that is kept in the search index.
type Searchable interface {
	// SearchKey returns the primary key; it doubles as the document id.
	SearchKey() string
	// SearchableAs returns the index type name the record is stored under.
	SearchableAs() string
	// ToSearchableMap returns the document body sent to the engine.
	ToSearchableMap() map[string]any
}

// PropertyMapper is implemented by records that declare an explicit
// property schema for MapProperties.
type PropertyMapper interface {
	SearchProperties() map[string]any
}

// RecordStore resolves document ids back to authoritative records.
type RecordStore interface {
	// FindByKeys returns the records whose primary key is in keys, in any order.
	// Soft-deleted records are only returned when withTrashed is true.
	FindByKeys(ctx context.Context, keys []string, withTrashed bool) ([]Searchable, error)
}

// RecordStoreFunc is a function type that implements the RecordStore interface.
type RecordStoreFunc func(ctx context.Context, keys []string, withTrashed bool) ([]Searchable, error)

// FindByKeys implements the RecordStore interface for RecordStoreFunc.
func (f RecordStoreFunc) FindByKeys(ctx context.Context, keys []string, withTrashed bool) ([]Searchable, error) {
	return f(ctx, keys, withTrashed)
}

// Lister walks every record of a store batch by batch. The order depends on
// the store.
type Lister interface {
	Each(ctx context.Context, withTrashed bool, batchSize int, fn func([]Searchable) error) error
}

// Engine is the search engine adapter.
type Engine interface {
	// Search compiles and executes q, returning the raw engine response.
	Search(ctx context.Context, q *Query) (*Response, error)
	// Paginate executes q for a single page and sets Response.NbPages.
	Paginate(ctx context.Context, q *Query, perPage, page int) (*Response, error)
	// BulkUpsert writes records as update-or-insert documents.
	BulkUpsert(ctx context.Context, records []Searchable) error
	// BulkDelete removes the documents of records.
	BulkDelete(ctx context.Context, records []Searchable) error
	// MapProperties creates or updates the property mapping for typeName.
	MapProperties(ctx context.Context, typeName string, properties map[string]any) error
}
