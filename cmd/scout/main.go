package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/letmevibethatforyou/scoutx"
	"github.com/letmevibethatforyou/scoutx/elastic"
	"github.com/letmevibethatforyou/scoutx/internal/config"
	"github.com/letmevibethatforyou/scoutx/internal/metrics"
	"github.com/letmevibethatforyou/scoutx/store/dynamo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const defaultTimeout = 30 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "scout",
		Usage: "Manage and query Elasticsearch indices of DynamoDB records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration",
				EnvVars:  []string{"SCOUT_CONFIG"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name for AWS Secrets Manager (takes precedence over the config credentials)",
				EnvVars: []string{"ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Address to serve Prometheus metrics on; overrides metrics.addr",
				EnvVars: []string{"SCOUT_METRICS_ADDR"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout of the whole command",
				Value: defaultTimeout,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "map",
				Usage:     "Create or update the property mapping of a model",
				ArgsUsage: "<model>",
				Action:    mapAction,
			},
			{
				Name:      "import",
				Usage:     "Import every record of a model into the index",
				ArgsUsage: "<model>",
				Action:    importAction,
			},
			{
				Name:      "flush",
				Usage:     "Remove every record of a model from the index",
				ArgsUsage: "<model>",
				Action:    flushAction,
			},
			{
				Name:      "search",
				Usage:     "Search a model and print one page of records as JSON",
				ArgsUsage: "<model> [query]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Filter in field=value format; repeatable",
					},
					&cli.StringSliceFlag{
						Name:  "sort",
						Usage: "Order in field[:asc|desc] format; repeatable",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "per-page",
						Usage: "Page size; defaults to the model's per_page",
					},
					&cli.BoolFlag{
						Name:  "with-trashed",
						Usage: "Include soft deleted records",
					},
				},
				Action: searchAction,
			},
		},
	}
}

// app holds what every command needs.
type app struct {
	cfg    config.Config
	engine scoutx.Engine
	dynamo *dynamodb.Client
}

func setup(c *cli.Context) (*app, error) {
	ctx := c.Context

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	configureLogging(cfg.Logging)

	// AWS is only needed for Secrets Manager and the record table.
	var awsCfg aws.Config
	if c.String("env") != "" || cfg.Elasticsearch.SecretARN != "" || cfg.DynamoDB.Table != "" {
		if awsCfg, err = awsconfig.LoadDefaultConfig(ctx); err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}

	var fetchSecrets elastic.FetchSecrets
	switch {
	case c.String("env") != "":
		slog.InfoContext(ctx, "Using AWS Secrets Manager for credentials", "environment", c.String("env"))
		fetchSecrets = elastic.AWSSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), c.String("env"))
	case cfg.Elasticsearch.SecretARN != "":
		slog.InfoContext(ctx, "Using AWS Secrets Manager for credentials", "secret_arn", cfg.Elasticsearch.SecretARN)
		fetchSecrets = elastic.AWSSecretsFromARN(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.Elasticsearch.SecretARN)
	default:
		es := cfg.Elasticsearch
		fetchSecrets = func() (elastic.Secrets, error) {
			return elastic.Secrets{
				Addresses: es.Addresses,
				Username:  es.Username,
				Password:  es.Password,
				APIKey:    es.APIKey,
			}, nil
		}
	}

	addr := cfg.Metrics.Addr
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}
	if addr != "" {
		serveMetrics(ctx, addr)
	}

	engine := elastic.NewEngine(
		elastic.NewClient(fetchSecrets),
		cfg.Elasticsearch.Index,
		elastic.WithBatchSize(cfg.Elasticsearch.BulkSize),
		elastic.WithAnalyzer(cfg.Elasticsearch.Analyzer),
	)

	a := &app{
		cfg:    cfg,
		engine: metrics.Instrument(engine),
	}
	if cfg.DynamoDB.Table != "" {
		a.dynamo = dynamodb.NewFromConfig(awsCfg)
	}
	return a, nil
}

func configureLogging(cfg config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	format := cfg.Format
	if format == "" && (os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "") {
		format = "json"
	}

	if format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serveMetrics(ctx context.Context, addr string) {
	metrics.Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.InfoContext(ctx, "Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "Metrics server failed", "error", err)
		}
	}()
}

// model resolves the <model> argument and its DynamoDB store.
func (a *app) model(c *cli.Context) (string, config.ModelConfig, *dynamo.Store, error) {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return "", config.ModelConfig{}, nil, fmt.Errorf("model name is required")
	}

	m, err := a.cfg.Model(name)
	if err != nil {
		return "", config.ModelConfig{}, nil, err
	}
	if a.cfg.DynamoDB.Table == "" {
		return name, m, nil, nil
	}
	return name, m, dynamo.NewStore(a.dynamo, a.cfg.DynamoDB.Table, m.IndexName), nil
}
