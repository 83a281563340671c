// Package gormstore resolves search hits to rows of a relational table
// through gorm. Soft deletes follow gorm's DeletedAt convention.
package gormstore

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyParser converts a document id back to a primary key value.
type KeyParser func(key string) (any, error)

// StringKeys passes document ids through unchanged.
func StringKeys(key string) (any, error) { return key, nil }

// UintKeys parses document ids as unsigned integer primary keys.
func UintKeys(key string) (any, error) {
	n, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid key %q", key)
	}
	return n, nil
}

// Option configures a Store.
type Option func(*options)

type options struct {
	keyColumn string
	parseKey  KeyParser
}

// WithKeyColumn sets the column matched against document ids. Defaults to "id".
func WithKeyColumn(column string) Option {
	return func(o *options) {
		if column != "" {
			o.keyColumn = column
		}
	}
}

// WithKeyParser sets how document ids are converted before querying.
func WithKeyParser(parse KeyParser) Option {
	return func(o *options) {
		if parse != nil {
			o.parseKey = parse
		}
	}
}

// Store implements scoutx.RecordStore and scoutx.Lister for the gorm model T.
type Store[T scoutx.Searchable] struct {
	db *gorm.DB
	options
}

// New creates a store reading T rows from db.
func New[T scoutx.Searchable](db *gorm.DB, opts ...Option) *Store[T] {
	s := &Store[T]{
		db: db,
		options: options{
			keyColumn: "id",
			parseKey:  StringKeys,
		},
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	return s
}

// FindByKeys implements scoutx.RecordStore with a single IN query.
func (s *Store[T]) FindByKeys(ctx context.Context, keys []string, withTrashed bool) ([]scoutx.Searchable, error) {
	if len(keys) == 0 {
		return []scoutx.Searchable{}, nil
	}

	values := make([]any, 0, len(keys))
	for _, key := range keys {
		v, err := s.parseKey(key)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	var rows []T
	err := s.scope(ctx, withTrashed).
		Where(clause.IN{Column: clause.Column{Name: s.keyColumn}, Values: values}).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find %d rows by %s", len(keys), s.keyColumn)
	}

	return toSearchable(rows), nil
}

// Each implements scoutx.Lister, reading rows in primary key order.
func (s *Store[T]) Each(ctx context.Context, withTrashed bool, batchSize int, fn func([]scoutx.Searchable) error) error {
	if batchSize < 1 {
		batchSize = scoutx.DefaultChunkSize
	}

	var rows []T
	err := s.scope(ctx, withTrashed).
		FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
			return fn(toSearchable(rows))
		}).Error
	if err != nil {
		return errors.Wrap(err, "failed to walk rows")
	}
	return nil
}

func (s *Store[T]) scope(ctx context.Context, withTrashed bool) *gorm.DB {
	db := s.db.WithContext(ctx).Model(new(T))
	if withTrashed {
		db = db.Unscoped()
	}
	return db
}

func toSearchable[T scoutx.Searchable](rows []T) []scoutx.Searchable {
	out := make([]scoutx.Searchable, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	return out
}
