package scoutx

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Page is one page of resolved records. It is immutable once built.
type Page struct {
	items       []Searchable
	total       int64
	perPage     int
	currentPage int
	lastPage    int
	path        string
	pageName    string
	params      url.Values
}

// NewPage builds a page. The last page is ceil(total/perPage) and never
// below 1.
func NewPage(items []Searchable, total int64, perPage, currentPage int, opts ...PageOption) *Page {
	cfg := newPageConfig(opts)

	if perPage < 1 {
		perPage = 1
	}
	if currentPage < 1 {
		currentPage = 1
	}
	lastPage := int(math.Max(math.Ceil(float64(total)/float64(perPage)), 1))

	params := url.Values{}
	for _, a := range cfg.Appends {
		appendParam(params, a.Key, normalizeParam(a.Value))
	}

	return &Page{
		items:       append([]Searchable(nil), items...),
		total:       total,
		perPage:     perPage,
		currentPage: currentPage,
		lastPage:    lastPage,
		path:        cfg.Path,
		pageName:    cfg.PageName,
		params:      params,
	}
}

// Items returns the records of the page in engine order.
func (p *Page) Items() []Searchable { return append([]Searchable(nil), p.items...) }

// Total returns the engine-reported total hit count.
func (p *Page) Total() int64 { return p.total }

// PerPage returns the page size.
func (p *Page) PerPage() int { return p.perPage }

// CurrentPage returns the 1-based page number.
func (p *Page) CurrentPage() int { return p.currentPage }

// LastPage returns the number of pages.
func (p *Page) LastPage() int { return p.lastPage }

// HasMorePages reports whether a page follows this one.
func (p *Page) HasMorePages() bool { return p.currentPage < p.lastPage }

// URL returns the link to page, carrying the appended parameters.
func (p *Page) URL(page int) string {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	for k, v := range p.params {
		params[k] = append([]string(nil), v...)
	}
	params.Set(p.pageName, strconv.Itoa(page))

	sep := "?"
	if strings.Contains(p.path, "?") {
		sep = "&"
	}
	return p.path + sep + params.Encode()
}

// NextPageURL returns the link to the next page, or "" on the last page.
func (p *Page) NextPageURL() string {
	if !p.HasMorePages() {
		return ""
	}
	return p.URL(p.currentPage + 1)
}

// PreviousPageURL returns the link to the previous page, or "" on the first page.
func (p *Page) PreviousPageURL() string {
	if p.currentPage <= 1 {
		return ""
	}
	return p.URL(p.currentPage - 1)
}

// MarshalJSON renders the page with its records under "data".
func (p *Page) MarshalJSON() ([]byte, error) {
	data := make([]map[string]any, 0, len(p.items))
	for _, item := range p.items {
		doc := item.ToSearchableMap()
		if doc == nil {
			doc = map[string]any{}
		}
		data = append(data, doc)
	}

	var next, prev *string
	if u := p.NextPageURL(); u != "" {
		next = &u
	}
	if u := p.PreviousPageURL(); u != "" {
		prev = &u
	}

	return json.Marshal(struct {
		Total        int64            `json:"total"`
		PerPage      int              `json:"per_page"`
		CurrentPage  int              `json:"current_page"`
		LastPage     int              `json:"last_page"`
		FirstPageURL string           `json:"first_page_url"`
		LastPageURL  string           `json:"last_page_url"`
		NextPageURL  *string          `json:"next_page_url"`
		PrevPageURL  *string          `json:"prev_page_url"`
		Path         string           `json:"path"`
		Data         []map[string]any `json:"data"`
	}{
		Total:        p.total,
		PerPage:      p.perPage,
		CurrentPage:  p.currentPage,
		LastPage:     p.lastPage,
		FirstPageURL: p.URL(1),
		LastPageURL:  p.URL(p.lastPage),
		NextPageURL:  next,
		PrevPageURL:  prev,
		Path:         p.path,
		Data:         data,
	})
}

// normalizeParam turns structs into their JSON shape so that tagged names
// are used in links.
func normalizeParam(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int64, float64, map[string]any, []any:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

// appendParam adds value under key using bracket notation for nested maps
// and lists, e.g. filter[term][status]=active and orders[0][column]=price.
// Nil values and empty containers are skipped.
func appendParam(params url.Values, key string, value any) {
	switch v := value.(type) {
	case nil:
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			appendParam(params, key+"["+k+"]", v[k])
		}
	case []any:
		for i, item := range v {
			appendParam(params, key+"["+strconv.Itoa(i)+"]", item)
		}
	case bool:
		if v {
			params.Add(key, "1")
		} else {
			params.Add(key, "0")
		}
	case float64:
		params.Add(key, strconv.FormatFloat(v, 'f', -1, 64))
	default:
		if list, ok := asList(v); ok {
			appendParam(params, key, list)
			return
		}
		params.Add(key, fmt.Sprint(v))
	}
}
