package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/letmevibethatforyou/scoutx/elastic"
	"github.com/letmevibethatforyou/scoutx/internal/ddb"
	"github.com/letmevibethatforyou/scoutx/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "dynamodb-elastic-sync",
		Usage: "Sync DynamoDB stream events to Elasticsearch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name for AWS Secrets Manager (takes precedence over the address flags)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:    "index",
				Usage:   "Prefix of the Elasticsearch indices",
				EnvVars: []string{"ELASTICSEARCH_INDEX"},
				Value:   "scout",
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Number of documents per bulk request",
				EnvVars: []string{"ELASTICSEARCH_BATCH_SIZE"},
				Value:   elastic.DefaultBatchSize,
			},
			&cli.StringFlag{
				Name:    "elasticsearch-addresses",
				Usage:   "Comma separated Elasticsearch node URLs",
				EnvVars: []string{"ELASTICSEARCH_ADDRESSES"},
			},
			&cli.StringFlag{
				Name:    "elasticsearch-username",
				Usage:   "Elasticsearch basic auth user",
				EnvVars: []string{"ELASTICSEARCH_USER"},
			},
			&cli.StringFlag{
				Name:    "elasticsearch-password",
				Usage:   "Elasticsearch basic auth password",
				EnvVars: []string{"ELASTICSEARCH_PASS"},
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	env := c.String("env")
	index := c.String("index")
	addresses := c.String("elasticsearch-addresses")

	slog.InfoContext(ctx, "Starting DynamoDB to Elasticsearch sync", "index", index, "environment", env)

	var fetchSecrets elastic.FetchSecrets

	if env != "" {
		slog.InfoContext(ctx, "Using AWS Secrets Manager for credentials", "environment", env)

		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load AWS config", "error", err)
			return err
		}

		client := secretsmanager.NewFromConfig(cfg)
		fetchSecrets = elastic.AWSSecrets(ctx, client, env)
	} else if addresses != "" {
		slog.InfoContext(ctx, "Using static credentials from flags")
		fetchSecrets = elastic.StaticSecrets(
			strings.Split(addresses, ","),
			c.String("elasticsearch-username"),
			c.String("elasticsearch-password"),
		)
	} else {
		slog.InfoContext(ctx, "Using environment variables for credentials")
		fetchSecrets = elastic.EnvSecrets()
	}

	metrics.Register()
	engine := elastic.NewEngine(elastic.NewClient(fetchSecrets), index, elastic.WithBatchSize(c.Int("batch-size")))
	handler := NewHandler(metrics.Instrument(engine))

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		slog.InfoContext(ctx, "Running in Lambda environment")
		lambda.Start(func(ctx context.Context, e ddb.DynamoDBEvent) error {
			return metrics.Summarize(ctx, prometheus.DefaultGatherer, func() error {
				return handler.HandleDynamoDBEvent(ctx, e)
			})
		})
	} else {
		slog.InfoContext(ctx, "Function cannot run outside of AWS Lambda environment")
	}

	return nil
}
