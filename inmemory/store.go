package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/letmevibethatforyou/scoutx"
)

// Record is a searchable record held by Store.
type Record struct {
	ID      string
	Index   string
	Fields  map[string]interface{}
	Trashed bool
}

// SearchKey implements scoutx.Searchable.
func (r Record) SearchKey() string { return r.ID }

// SearchableAs implements scoutx.Searchable.
func (r Record) SearchableAs() string { return r.Index }

// ToSearchableMap implements scoutx.Searchable.
func (r Record) ToSearchableMap() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v
	}
	return out
}

// Store is an in-memory scoutx.RecordStore with soft deletes.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record

	// Lookups counts FindByKeys calls.
	Lookups int
}

// NewStore creates a store holding records.
func NewStore(records ...Record) *Store {
	s := &Store{records: make(map[string]Record, len(records))}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

// Put adds or replaces a record.
func (s *Store) Put(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// SoftDelete marks a record as trashed. It reports whether the record exists.
func (s *Store) SoftDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false
	}
	r.Trashed = true
	s.records[id] = r
	return true
}

// FindByKeys implements scoutx.RecordStore.
func (s *Store) FindByKeys(ctx context.Context, keys []string, withTrashed bool) ([]scoutx.Searchable, error) {
	s.mu.Lock()
	s.Lookups++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scoutx.Searchable, 0, len(keys))
	for _, key := range keys {
		r, ok := s.records[key]
		if !ok || (r.Trashed && !withTrashed) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Each implements scoutx.Lister, walking records in id order.
func (s *Store) Each(ctx context.Context, withTrashed bool, batchSize int, fn func([]scoutx.Searchable) error) error {
	if batchSize < 1 {
		batchSize = scoutx.DefaultChunkSize
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.records))
	for id, r := range s.records {
		if r.Trashed && !withTrashed {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	batch := make([]scoutx.Searchable, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, s.records[id])
	}
	s.mu.RUnlock()

	for start := 0; start < len(batch); start += batchSize {
		end := min(start+batchSize, len(batch))
		if err := fn(batch[start:end]); err != nil {
			return err
		}
	}
	return nil
}
