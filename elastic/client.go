// Package elastic binds scoutx to Elasticsearch through a lazily
// initialized go-elasticsearch client with configurable secret management.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/letmevibethatforyou/scoutx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Secrets holds the Elasticsearch connection settings.
type Secrets struct {
	// Addresses are the cluster node URLs.
	Addresses []string `json:"addresses"`
	// Username is the basic auth user.
	Username string `json:"username,omitempty"`
	// Password is the basic auth password.
	Password string `json:"password,omitempty"`
	// APIKey is a base64 encoded API key, used instead of basic auth when set.
	APIKey string `json:"api_key,omitempty"`
}

// FetchSecrets is a function type that retrieves Elasticsearch credentials.
// It allows for different secret retrieval strategies (static, environment variables, etc.).
type FetchSecrets func() (Secrets, error)

// StaticSecrets returns a FetchSecrets function that provides static settings.
// This is useful for testing or for clusters without authentication.
func StaticSecrets(addresses []string, username, password string) FetchSecrets {
	return func() (Secrets, error) {
		return Secrets{
			Addresses: addresses,
			Username:  username,
			Password:  password,
		}, nil
	}
}

// EnvSecrets reads ELASTICSEARCH_URL (comma separated) and optional
// ELASTICSEARCH_USERNAME, ELASTICSEARCH_PASSWORD and ELASTICSEARCH_API_KEY.
func EnvSecrets() FetchSecrets {
	return func() (Secrets, error) {
		raw := os.Getenv("ELASTICSEARCH_URL")
		if raw == "" {
			return Secrets{}, fmt.Errorf("ELASTICSEARCH_URL environment variable is not set")
		}

		var addresses []string
		for _, addr := range strings.Split(raw, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				addresses = append(addresses, addr)
			}
		}

		return Secrets{
			Addresses: addresses,
			Username:  os.Getenv("ELASTICSEARCH_USERNAME"),
			Password:  os.Getenv("ELASTICSEARCH_PASSWORD"),
			APIKey:    os.Getenv("ELASTICSEARCH_API_KEY"),
		}, nil
	}
}

// ClientOption configures a Client.
type ClientOption func(*elasticsearch.Config)

// WithTransport sets the HTTP transport used by the client.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(cfg *elasticsearch.Config) {
		cfg.Transport = rt
	}
}

// Client performs the Elasticsearch calls used by Engine. Credentials are
// fetched on first use.
type Client struct {
	getClient func() (*elasticsearch.Client, error)
	tracer    trace.Tracer
}

// NewClient creates a client. fetchSecrets is not called until the first request.
func NewClient(fetchSecrets FetchSecrets, opts ...ClientOption) *Client {
	getClient := sync.OnceValues(func() (*elasticsearch.Client, error) {
		secrets, err := fetchSecrets()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch secrets: %w", err)
		}

		if len(secrets.Addresses) == 0 {
			return nil, fmt.Errorf("Addresses is empty")
		}

		cfg := elasticsearch.Config{
			Addresses: secrets.Addresses,
			Username:  secrets.Username,
			Password:  secrets.Password,
			APIKey:    secrets.APIKey,
		}
		for _, opt := range opts {
			opt(&cfg)
		}

		client, err := elasticsearch.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
		}
		return client, nil
	})

	tracer := otel.Tracer("scoutx-elastic")

	return &Client{
		getClient: getClient,
		tracer:    tracer,
	}
}

// Search runs req against index and decodes the response.
func (c *Client) Search(ctx context.Context, index string, req *scoutx.CompiledRequest) (*scoutx.Response, error) {
	ctx, span := c.tracer.Start(ctx, "elastic.search",
		trace.WithAttributes(
			attribute.String("elastic.index", index),
		),
	)
	defer span.End()

	es, err := c.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return nil, errors.Mark(err, scoutx.ErrTransport)
	}

	body, err := json.Marshal(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode request")
		return nil, errors.Wrap(err, "failed to encode search request")
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(bytes.NewReader(body)),
		es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("search on index %s failed", index))
		return nil, transportError(err, "search on index %s", index)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := responseError(res)
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("search on index %s failed", index))
		return nil, err
	}

	var resp scoutx.Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode response")
		return nil, errors.Mark(errors.Wrapf(err, "failed to decode search response from index %s", index), scoutx.ErrTransport)
	}

	span.SetAttributes(
		attribute.Int64("elastic.total_hits", resp.Hits.Total.Value),
		attribute.Int("elastic.returned_hits", len(resp.Hits.Hits)),
	)
	span.SetStatus(codes.Ok, "search completed")
	return &resp, nil
}

// Bulk sends ops as a single bulk request. Item-level failures are reported
// as scoutx.ErrBulkItemFailed.
func (c *Client) Bulk(ctx context.Context, ops []BulkOperation) error {
	if len(ops) == 0 {
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "elastic.bulk",
		trace.WithAttributes(
			attribute.Int("elastic.operation_count", len(ops)),
		),
	)
	defer span.End()

	es, err := c.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return errors.Mark(err, scoutx.ErrTransport)
	}

	body, err := encodeBulk(ops)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode bulk body")
		return err
	}

	res, err := es.Bulk(bytes.NewReader(body), es.Bulk.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("bulk of %d operations failed", len(ops)))
		return transportError(err, "bulk of %d operations", len(ops))
	}
	defer res.Body.Close()

	if res.IsError() {
		err := responseError(res)
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("bulk of %d operations failed", len(ops)))
		return err
	}

	if err := bulkItemsError(res.Body, len(ops)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk items failed")
		return err
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("bulk of %d operations completed", len(ops)))
	return nil
}

// PutMapping updates the mapping of an existing index. A missing index is
// reported as scoutx.ErrIndexNotFound.
func (c *Client) PutMapping(ctx context.Context, index string, body map[string]any) error {
	ctx, span := c.tracer.Start(ctx, "elastic.put_mapping",
		trace.WithAttributes(
			attribute.String("elastic.index", index),
		),
	)
	defer span.End()

	es, err := c.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return errors.Mark(err, scoutx.ErrTransport)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode mapping")
	}

	res, err := es.Indices.PutMapping(
		[]string{index},
		bytes.NewReader(payload),
		es.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("put mapping on index %s failed", index))
		return transportError(err, "put mapping on index %s", index)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := responseError(res)
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("put mapping on index %s failed", index))
		return err
	}

	span.SetStatus(codes.Ok, "mapping updated")
	return nil
}

// CreateIndex creates index with body as its settings and mappings.
func (c *Client) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	ctx, span := c.tracer.Start(ctx, "elastic.create_index",
		trace.WithAttributes(
			attribute.String("elastic.index", index),
		),
	)
	defer span.End()

	es, err := c.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Elasticsearch client")
		return errors.Mark(err, scoutx.ErrTransport)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to encode index body")
	}

	res, err := es.Indices.Create(
		index,
		es.Indices.Create.WithBody(bytes.NewReader(payload)),
		es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("create index %s failed", index))
		return transportError(err, "create index %s", index)
	}
	defer res.Body.Close()

	if res.IsError() {
		err := responseError(res)
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("create index %s failed", index))
		return err
	}

	span.SetStatus(codes.Ok, "index created")
	return nil
}

// errorBody is the error envelope of an Elasticsearch error response.
type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// responseError converts an error response. index_not_found_exception is
// marked scoutx.ErrIndexNotFound, everything else scoutx.ErrTransport.
func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(res.Body)

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Type == "" {
		return errors.Mark(errors.Newf("elasticsearch error [%s]: %s", res.Status(), raw), scoutx.ErrTransport)
	}

	err := errors.Newf("elasticsearch error [%s] %s: %s", res.Status(), body.Error.Type, body.Error.Reason)
	if res.StatusCode == http.StatusNotFound && body.Error.Type == "index_not_found_exception" {
		return errors.Mark(err, scoutx.ErrIndexNotFound)
	}
	return errors.Mark(err, scoutx.ErrTransport)
}

// transportError marks a failed round trip. The cause stays reachable with
// errors.Is, context errors included.
func transportError(err error, format string, args ...interface{}) error {
	wrapped := errors.Wrapf(err, format, args...)
	switch {
	case errors.Is(err, context.Canceled):
		return errors.Mark(wrapped, scoutx.ErrCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Mark(wrapped, scoutx.ErrTimeout)
	default:
		return errors.Mark(wrapped, scoutx.ErrTransport)
	}
}
