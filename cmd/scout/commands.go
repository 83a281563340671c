package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/letmevibethatforyou/scoutx"
	"github.com/urfave/cli/v2"
)

func withTimeout(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

func mapAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	name, m, _, err := a.model(c)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := a.engine.MapProperties(ctx, m.IndexName, m.Properties); err != nil {
		return fmt.Errorf("failed to map %s: %w", name, err)
	}

	fmt.Fprintf(c.App.Writer, "[%s] have been mapped.\n", name)
	return nil
}

func importAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	name, _, store, err := a.model(c)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("dynamodb.table is required to import %s", name)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	count, err := scoutx.MakeAllSearchable(ctx, a.engine, store)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", name, err)
	}

	fmt.Fprintf(c.App.Writer, "Imported [%s] records: %d\n", name, count)
	return nil
}

func flushAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	name, _, store, err := a.model(c)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("dynamodb.table is required to flush %s", name)
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	count, err := scoutx.RemoveAllFromSearch(ctx, a.engine, store)
	if err != nil {
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}

	fmt.Fprintf(c.App.Writer, "All [%s] records have been flushed: %d\n", name, count)
	return nil
}

func searchAction(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	name, m, store, err := a.model(c)
	if err != nil {
		return err
	}

	q, err := buildQuery(strings.TrimSpace(c.Args().Get(1)), c.StringSlice("filter"), c.StringSlice("sort"))
	if err != nil {
		return err
	}
	if c.Bool("with-trashed") {
		q.WithTrashed()
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	var records scoutx.RecordStore = store
	if store == nil {
		records = sourceStore{}
	}

	searcher := scoutx.NewSearcher(a.engine, records, m.IndexName).WithPerPage(m.PerPage)
	page, err := searcher.Paginate(ctx, q, c.Int("per-page"), c.Int("page"), scoutx.WithPath("/"+name))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

// buildQuery turns the search flags into a query.
func buildQuery(text string, filters, sorts []string) (*scoutx.Query, error) {
	q := scoutx.NewQuery(text)

	for _, item := range filters {
		field, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		field, value = strings.TrimSpace(field), strings.TrimSpace(value)
		if !ok || field == "" || value == "" {
			return nil, fmt.Errorf("filter must be in field=value format: %q", item)
		}
		q.Where(scoutx.Eq(field, value))
	}

	for _, item := range sorts {
		field, direction, _ := strings.Cut(strings.TrimSpace(item), ":")
		if field == "" {
			return nil, fmt.Errorf("sort must be in field[:asc|desc] format: %q", item)
		}
		if direction == "" {
			direction = "asc"
		}
		q.OrderBy(field, direction)
	}

	return q, nil
}

// sourceStore answers with keys only when no table is configured, so that
// search still prints ids.
type sourceStore struct{}

type keyOnly string

func (k keyOnly) SearchKey() string               { return string(k) }
func (k keyOnly) SearchableAs() string            { return "" }
func (k keyOnly) ToSearchableMap() map[string]any { return map[string]any{"id": string(k)} }

func (sourceStore) FindByKeys(ctx context.Context, keys []string, withTrashed bool) ([]scoutx.Searchable, error) {
	out := make([]scoutx.Searchable, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyOnly(k))
	}
	return out, nil
}
