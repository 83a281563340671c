package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/letmevibethatforyou/scoutx"
	"github.com/letmevibethatforyou/scoutx/elastic"
	"github.com/letmevibethatforyou/scoutx/internal/config"
	"github.com/letmevibethatforyou/scoutx/store/dynamo"
	"github.com/segmentio/ksuid"
	"github.com/urfave/cli/v2"
)

// PutItemAPI is the subset of the DynamoDB client used to insert records.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

func insertRecord(ctx context.Context, client PutItemAPI, tableName, indexName string, object map[string]any) (dynamo.Record, error) {
	record := dynamo.Record{
		ID:        ksuid.New().String(),
		IndexName: indexName,
		Object:    object,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return dynamo.Record{}, fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	if err != nil {
		return dynamo.Record{}, fmt.Errorf("failed to put item in DynamoDB: %w", err)
	}

	slog.DebugContext(ctx, "Inserted record", "id", record.ID, "index", indexName)
	return record, nil
}

// target is what the generated records look like and where they are synced.
type target struct {
	indexName  string
	properties map[string]any
	prefix     string
	batchSize  int
}

func resolveTarget(model, path, prefix string) (target, error) {
	t := target{
		indexName:  model,
		properties: carProperties,
		prefix:     prefix,
		batchSize:  elastic.DefaultBatchSize,
	}

	if path == "" {
		if model != "cars" {
			return target{}, fmt.Errorf("model %q needs --config for its properties", model)
		}
		return t, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return target{}, err
	}
	m, err := cfg.Model(model)
	if err != nil {
		return target{}, err
	}
	if len(m.Properties) == 0 {
		return target{}, fmt.Errorf("model %q has no properties to generate from", model)
	}

	t.indexName = m.IndexName
	t.properties = m.Properties
	t.prefix = cfg.Elasticsearch.Index
	t.batchSize = cfg.Elasticsearch.BulkSize
	return t, nil
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	env := c.String("env")
	tableName := c.String("table-name")
	count := c.Int("count")

	t, err := resolveTarget(c.String("model"), c.String("config"), c.String("index"))
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Starting record generator",
		"environment", env,
		"table", tableName,
		"index_name", t.indexName,
		"count", count,
		"sync", c.Bool("sync"),
	)

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg)
	gen := NewGenerator(t.properties, rand.Uint64())

	records := make([]scoutx.Searchable, 0, count)
	for i := 0; i < count; i++ {
		record, err := insertRecord(ctx, client, tableName, t.indexName, gen.Document())
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i+1, err)
		}
		records = append(records, record)
	}

	// Without a stream trigger the records are only searchable after a sync.
	if c.Bool("sync") {
		if env == "" {
			return fmt.Errorf("--env is required with --sync")
		}
		engine := elastic.NewEngine(
			elastic.NewClient(elastic.AWSSecrets(ctx, secretsmanager.NewFromConfig(cfg), env)),
			t.prefix,
			elastic.WithBatchSize(t.batchSize),
		)
		if err := engine.BulkUpsert(ctx, records); err != nil {
			return fmt.Errorf("failed to sync records to Elasticsearch: %w", err)
		}
		slog.InfoContext(ctx, "Synced records to Elasticsearch", "count", len(records), "index", engine.IndexFor(t.indexName))
	}

	slog.InfoContext(ctx, "Successfully generated and inserted all records", "count", count)
	return nil
}

func main() {
	// Configure JSON logging for AWS environments
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "generator",
		Usage: "Generate random records for a model and insert them into DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment name, used for the Elasticsearch secrets with --sync",
				EnvVars: []string{"ENVIRONMENT"},
			},
			&cli.StringFlag{
				Name:     "table-name",
				Aliases:  []string{"t"},
				Usage:    "DynamoDB table name",
				EnvVars:  []string{"TABLE_NAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the scout YAML configuration holding the model's properties",
				EnvVars: []string{"SCOUT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model to generate records for; cars is built in",
				Value:   "cars",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Upsert the generated records into Elasticsearch",
			},
			&cli.StringFlag{
				Name:    "index",
				Usage:   "Prefix of the Elasticsearch indices when no config is given",
				EnvVars: []string{"ELASTICSEARCH_INDEX"},
				Value:   "scout",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"c"},
				Usage:   "Number of records to generate",
				Value:   1,
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}
