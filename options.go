package scoutx

// PageOption represents a pagination configuration option.
type PageOption interface {
	Apply(*PageConfig)
}

// PageConfig holds the link parameters of a page.
type PageConfig struct {
	// Path is the base URL of page links.
	Path string

	// PageName is the query parameter carrying the page number.
	PageName string

	// Appends are extra query parameters added to every page link.
	Appends []Append
}

// Append is an extra query parameter added to page links.
type Append struct {
	Key   string
	Value any
}

// optionFunc is a function that implements PageOption.
type optionFunc func(*PageConfig)

// Apply implements the PageOption interface for optionFunc.
func (f optionFunc) Apply(cfg *PageConfig) {
	f(cfg)
}

// WithPath sets the base URL of page links.
func WithPath(path string) PageOption {
	return optionFunc(func(cfg *PageConfig) {
		cfg.Path = path
	})
}

// WithPageName sets the query parameter carrying the page number.
func WithPageName(name string) PageOption {
	return optionFunc(func(cfg *PageConfig) {
		cfg.PageName = name
	})
}

// WithAppend adds a query parameter to every page link.
func WithAppend(key string, value any) PageOption {
	return optionFunc(func(cfg *PageConfig) {
		cfg.Appends = append(cfg.Appends, Append{Key: key, Value: value})
	})
}

// WithQueryState echoes the query text, filters and orders of q in page
// links so following pages keep the search context.
func WithQueryState(q *Query) PageOption {
	return optionFunc(func(cfg *PageConfig) {
		cfg.Appends = append(cfg.Appends,
			Append{Key: "query", Value: q.Text},
			Append{Key: "filter", Value: q.Filters},
			Append{Key: "orders", Value: q.Orders},
		)
	})
}

func newPageConfig(opts []PageOption) *PageConfig {
	cfg := &PageConfig{
		Path:     "/",
		PageName: "page",
	}
	for _, opt := range opts {
		opt.Apply(cfg)
	}
	return cfg
}
