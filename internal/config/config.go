package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the scout configuration.
type Config struct {
	Elasticsearch ElasticsearchConfig    `yaml:"elasticsearch"`
	DynamoDB      DynamoDBConfig         `yaml:"dynamodb"`
	Models        map[string]ModelConfig `yaml:"models"`
	Logging       LoggingConfig          `yaml:"logging"`
	Metrics       MetricsConfig          `yaml:"metrics"`
}

// ElasticsearchConfig holds the cluster and index settings.
type ElasticsearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	APIKey    string   `yaml:"api_key"`
	SecretARN string   `yaml:"secret_arn"` // takes precedence over inline credentials
	Index     string   `yaml:"index"`      // prefix of every physical index
	Analyzer  string   `yaml:"analyzer"`   // analyzer of dynamic string fields
	BulkSize  int      `yaml:"bulk_size"`
}

// DynamoDBConfig holds the record table settings.
type DynamoDBConfig struct {
	Table string `yaml:"table"`
}

// ModelConfig describes a searchable model.
type ModelConfig struct {
	IndexName  string         `yaml:"index_name"` // sk of the model's items; defaults to the model name
	PerPage    int            `yaml:"per_page"`
	Properties map[string]any `yaml:"properties"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json (default: json in AWS)
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the metrics endpoint
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML, expanding ${VAR} references first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = "scout"
	}
	if c.Elasticsearch.Analyzer == "" {
		c.Elasticsearch.Analyzer = "standard"
	}
	if c.Elasticsearch.BulkSize <= 0 {
		c.Elasticsearch.BulkSize = 2000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for name, m := range c.Models {
		if m.IndexName == "" {
			m.IndexName = name
		}
		if m.PerPage <= 0 {
			m.PerPage = 15
		}
		c.Models[name] = m
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 && c.Elasticsearch.SecretARN == "" {
		return fmt.Errorf("elasticsearch.addresses or elasticsearch.secret_arn is required")
	}
	for _, addr := range c.Elasticsearch.Addresses {
		if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
			return fmt.Errorf("elasticsearch.addresses must be http(s) URLs, got %q", addr)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// Model returns the configuration of the named model.
func (c *Config) Model(name string) (ModelConfig, error) {
	m, ok := c.Models[name]
	if !ok {
		return ModelConfig{}, fmt.Errorf("model %q is not configured", name)
	}
	return m, nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
