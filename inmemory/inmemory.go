package inmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/scoutx"
)

// defaultSize is the hit count used when a request carries no size.
const defaultSize = 10

// Document represents a JSON document in the in-memory index.
type Document struct {
	// ID is the unique identifier for the document.
	ID string
	// Fields contains the document's data as key-value pairs.
	Fields map[string]interface{}
}

type collection struct {
	documents []Document
	idIndex   map[string]int // maps document ID to index in documents slice
}

// Engine implements scoutx.Engine over in-memory collections, one per index
// type name. It understands the subset of the query DSL that scoutx.Compile
// produces.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*collection
	mappings    map[string]map[string]any

	// BulkRequests counts the bulk calls made, one per BulkUpsert or BulkDelete.
	BulkRequests int
}

// New creates a new in-memory engine.
// The engine is ready to use and is safe for concurrent operations.
func New() *Engine {
	return &Engine{
		collections: make(map[string]*collection),
		mappings:    make(map[string]map[string]any),
	}
}

// AddDocument adds a document to the collection for index.
// If a document with the same ID already exists, it will be updated.
func (e *Engine) AddDocument(index string, doc Document) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.put(index, doc)
}

// AddJSON adds a JSON document by parsing the provided JSON data.
func (e *Engine) AddJSON(index, id string, jsonData []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return errors.Wrap(err, "failed to unmarshal JSON")
	}

	e.AddDocument(index, Document{
		ID:     id,
		Fields: fields,
	})
	return nil
}

// RemoveDocument removes a document by ID.
// Returns true if the document was found and removed.
func (e *Engine) RemoveDocument(index, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remove(index, id)
}

// Size returns the number of documents stored for index.
func (e *Engine) Size(index string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if c, ok := e.collections[index]; ok {
		return len(c.documents)
	}
	return 0
}

// Mapping returns the properties recorded by MapProperties for typeName.
func (e *Engine) Mapping(typeName string) (map[string]any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.mappings[typeName]
	return m, ok
}

// Search implements scoutx.Engine.
func (e *Engine) Search(ctx context.Context, q *scoutx.Query) (*scoutx.Response, error) {
	return e.execute(ctx, scoutx.Compile(q, scoutx.CompileOptions{
		Size:           q.Limit,
		NumericFilters: q.NumericFilters(),
	}))
}

// Paginate implements scoutx.Engine.
func (e *Engine) Paginate(ctx context.Context, q *scoutx.Query, perPage, page int) (*scoutx.Response, error) {
	if perPage < 1 || page < 1 {
		return nil, errors.Wrapf(scoutx.ErrInvalidPage, "page %d of size %d", page, perPage)
	}
	from := (page - 1) * perPage
	resp, err := e.execute(ctx, scoutx.Compile(q, scoutx.CompileOptions{
		From:           &from,
		Size:           &perPage,
		NumericFilters: q.NumericFilters(),
	}))
	if err != nil {
		return nil, err
	}
	nbPages := float64(resp.Hits.Total.Value) / float64(perPage)
	resp.NbPages = &nbPages
	return resp, nil
}

// BulkUpsert implements scoutx.Engine. Fields of existing documents are
// merged with the new ones.
func (e *Engine) BulkUpsert(ctx context.Context, records []scoutx.Searchable) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.BulkRequests++

	for _, r := range records {
		doc := Document{ID: r.SearchKey(), Fields: map[string]interface{}{}}
		if c, ok := e.collections[r.SearchableAs()]; ok {
			if idx, ok := c.idIndex[doc.ID]; ok {
				for k, v := range c.documents[idx].Fields {
					doc.Fields[k] = v
				}
			}
		}
		for k, v := range r.ToSearchableMap() {
			doc.Fields[k] = v
		}
		e.put(r.SearchableAs(), doc)
	}
	return nil
}

// BulkDelete implements scoutx.Engine.
func (e *Engine) BulkDelete(ctx context.Context, records []scoutx.Searchable) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.BulkRequests++

	for _, r := range records {
		e.remove(r.SearchableAs(), r.SearchKey())
	}
	return nil
}

// MapProperties implements scoutx.Engine by recording the properties.
func (e *Engine) MapProperties(ctx context.Context, typeName string, properties map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.mappings[typeName]
	if !ok {
		m = make(map[string]any, len(properties))
		e.mappings[typeName] = m
	}
	for k, v := range properties {
		m[k] = v
	}
	return nil
}

func (e *Engine) put(index string, doc Document) {
	c, ok := e.collections[index]
	if !ok {
		c = &collection{idIndex: make(map[string]int)}
		e.collections[index] = c
	}
	if idx, exists := c.idIndex[doc.ID]; exists {
		c.documents[idx] = doc
		return
	}
	c.idIndex[doc.ID] = len(c.documents)
	c.documents = append(c.documents, doc)
}

func (e *Engine) remove(index, id string) bool {
	c, ok := e.collections[index]
	if !ok {
		return false
	}
	idx, exists := c.idIndex[id]
	if !exists {
		return false
	}

	c.documents = append(c.documents[:idx], c.documents[idx+1:]...)

	delete(c.idIndex, id)
	for i := idx; i < len(c.documents); i++ {
		c.idIndex[c.documents[i].ID] = i
	}
	return true
}

type scoredDocument struct {
	document Document
	score    float64
	random   float64
}

func (e *Engine) execute(ctx context.Context, req *scoutx.CompiledRequest) (*scoutx.Response, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return nil, scoutx.ErrCanceled
	default:
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var documents []Document
	if c, ok := e.collections[req.Index]; ok {
		documents = c.documents
	}

	var matches []scoredDocument
	for _, doc := range documents {
		score, ok, err := evaluateMust(doc, req.Query.Bool.Must)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ok, err = matchesFilter(doc, req.Query.Bool.Filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		matches = append(matches, scoredDocument{document: doc, score: score, random: rand.Float64()})
	}

	sortMatches(matches, req.Sort)

	total := len(matches)
	start := 0
	if req.From != nil {
		start = *req.From
	}
	size := defaultSize
	if req.Size != nil {
		size = *req.Size
	}
	start = min(max(start, 0), total)
	end := min(start+max(size, 0), total)

	resp := &scoutx.Response{
		Hits: scoutx.Hits{
			Total: scoutx.TotalHits{Value: int64(total), Relation: "eq"},
			Hits:  make([]scoutx.Hit, 0, end-start),
		},
	}

	var maxScore float64
	for i := start; i < end; i++ {
		match := matches[i]
		maxScore = math.Max(maxScore, match.score)
		source, err := json.Marshal(match.document.Fields)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode document %s", match.document.ID)
		}
		score := match.score
		resp.Hits.Hits = append(resp.Hits.Hits, scoutx.Hit{
			Index:  req.Index,
			ID:     match.document.ID,
			Score:  &score,
			Source: source,
		})
	}
	if len(resp.Hits.Hits) > 0 {
		resp.Hits.MaxScore = &maxScore
	}

	if len(req.Aggs) > 0 {
		aggs, err := aggregate(matches, req.Aggs)
		if err != nil {
			return nil, err
		}
		resp.Aggregations = aggs
	}

	if len(req.Suggest) > 0 {
		resp.Suggest = make(map[string][]scoutx.Suggestion, len(req.Suggest))
		for name, s := range req.Suggest {
			resp.Suggest[name] = suggest(documents, s)
		}
	}

	resp.Took = time.Since(startTime).Milliseconds()
	return resp, nil
}

// scoreDocument calculates the relevance score for a document based on the query.
func scoreDocument(doc Document, query string) float64 {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || query == "*" {
		return 1.0
	}

	terms := strings.Fields(query)
	score := 0.0
	matchedTerms := 0

	for _, term := range terms {
		termMatched := false
		for _, value := range doc.Fields {
			if valueContainsTerm(value, term) {
				termMatched = true
				score += 1.0
			}
		}
		if termMatched {
			matchedTerms++
		}
	}

	if matchedTerms == 0 {
		return 0
	}

	// Boost score if all terms matched
	if matchedTerms == len(terms) {
		score *= 1.5
	}

	return score
}

// valueContainsTerm checks if a value contains the search term.
func valueContainsTerm(value interface{}, term string) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), term)
	case []interface{}:
		for _, item := range v {
			if valueContainsTerm(item, term) {
				return true
			}
		}
	case map[string]interface{}:
		for _, item := range v {
			if valueContainsTerm(item, term) {
				return true
			}
		}
	default:
		str := fmt.Sprintf("%v", v)
		return strings.Contains(strings.ToLower(str), term)
	}
	return false
}

// sortMatches orders matches by the compiled sort clauses. Without clauses
// the insertion order is kept, like an index without relevance.
func sortMatches(matches []scoredDocument, clauses []map[string]any) {
	if len(clauses) == 0 {
		return
	}

	sort.SliceStable(matches, func(i, j int) bool {
		for _, clause := range clauses {
			for field, direction := range clause {
				var cmp int
				desc := direction == string(scoutx.Desc)
				switch field {
				case "_score":
					cmp = compareValues(matches[i].score, matches[j].score)
				case "_script":
					cmp = compareValues(matches[i].random, matches[j].random)
				default:
					cmp = compareValues(matches[i].document.Fields[field], matches[j].document.Fields[field])
				}
				if cmp != 0 {
					if desc {
						return cmp > 0
					}
					return cmp < 0
				}
			}
		}
		return false
	})
}

// compareValues compares two values for sorting.
func compareValues(v1, v2 interface{}) int {
	if v1 == nil && v2 == nil {
		return 0
	}
	if v1 == nil {
		return -1
	}
	if v2 == nil {
		return 1
	}

	if f1, ok1 := toFloat64(v1); ok1 {
		if f2, ok2 := toFloat64(v2); ok2 {
			if f1 < f2 {
				return -1
			} else if f1 > f2 {
				return 1
			}
			return 0
		}
	}

	s1 := fmt.Sprintf("%v", v1)
	s2 := fmt.Sprintf("%v", v2)
	return strings.Compare(s1, s2)
}
