package scoutx

import (
	"context"

	"github.com/cockroachdb/errors"
)

// DefaultChunkSize is the number of records read from a store per batch
// when syncing a whole model.
const DefaultChunkSize = 500

// MapModel applies model's property schema to the index. Models that do not
// implement PropertyMapper are mapped with an empty schema.
func MapModel(ctx context.Context, engine Engine, model Searchable) error {
	properties := map[string]any{}
	if m, ok := model.(PropertyMapper); ok {
		if p := m.SearchProperties(); p != nil {
			properties = p
		}
	}
	return engine.MapProperties(ctx, model.SearchableAs(), properties)
}

// MakeAllSearchable upserts every record of lister, soft-deleted ones
// included. It stops at the first failing batch; earlier batches stay
// committed. It returns the number of records sent.
func MakeAllSearchable(ctx context.Context, engine Engine, lister Lister) (int, error) {
	var count int
	err := lister.Each(ctx, true, DefaultChunkSize, func(records []Searchable) error {
		if err := engine.BulkUpsert(ctx, records); err != nil {
			return err
		}
		count += len(records)
		return nil
	})
	if err != nil {
		return count, errors.Wrapf(err, "make searchable after %d records", count)
	}
	return count, nil
}

// RemoveAllFromSearch deletes the documents of every record of lister,
// soft-deleted ones included. It returns the number of records sent.
func RemoveAllFromSearch(ctx context.Context, engine Engine, lister Lister) (int, error) {
	var count int
	err := lister.Each(ctx, true, DefaultChunkSize, func(records []Searchable) error {
		if err := engine.BulkDelete(ctx, records); err != nil {
			return err
		}
		count += len(records)
		return nil
	})
	if err != nil {
		return count, errors.Wrapf(err, "remove from search after %d records", count)
	}
	return count, nil
}
