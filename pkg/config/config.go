// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document
// status table. An empty Host disables status tracking.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentEvents string `yaml:"documentEvents"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds connection parameters for the Redis instance that stores
// every index structure.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"poolSize"`
	MaxRetries int    `yaml:"maxRetries"`
}

// IndexerConfig controls how documents are turned into index entries.
type IndexerConfig struct {
	// GeohashPrecision is the number of geohash characters per spatial bucket.
	GeohashPrecision int `yaml:"geohashPrecision"`
	// MinEdgeNgram is the shortest prefix stored in the edge n-gram index.
	MinEdgeNgram int `yaml:"minEdgeNgram"`
	// UpdateNgrams disables edge n-gram extension at index time when false.
	UpdateNgrams bool `yaml:"updateNgrams"`
	// MunicipalType is the document type whose postcode gets a boost.
	MunicipalType string `yaml:"municipalType"`
	// PurgeHousenumberBuckets removes house-number spatial buckets on deindex.
	PurgeHousenumberBuckets bool          `yaml:"purgeHousenumberBuckets"`
	BulkConcurrency         int           `yaml:"bulkConcurrency"`
	OperationTimeout        time.Duration `yaml:"operationTimeout"`
	RetryAttempts           int           `yaml:"retryAttempts"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the indexer cannot run with.
func (c *Config) Validate() error {
	if c.Indexer.GeohashPrecision < 1 || c.Indexer.GeohashPrecision > 12 {
		return fmt.Errorf("indexer.geohashPrecision must be between 1 and 12, got %d", c.Indexer.GeohashPrecision)
	}
	if c.Indexer.MinEdgeNgram < 1 {
		return fmt.Errorf("indexer.minEdgeNgram must be positive, got %d", c.Indexer.MinEdgeNgram)
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	return nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "geoindex",
			User:            "geoindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "geoindex-indexer",
			Topics: KafkaTopics{
				DocumentEvents: "geoindex.documents",
				IndexComplete:  "geoindex.index-complete",
			},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Indexer: IndexerConfig{
			GeohashPrecision:        8,
			MinEdgeNgram:            3,
			UpdateNgrams:            true,
			MunicipalType:           "commune",
			PurgeHousenumberBuckets: true,
			BulkConcurrency:         8,
			OperationTimeout:        10 * time.Second,
			RetryAttempts:           3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
		},
	}
}

// applyEnvOverrides reads GSI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GSI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GSI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("GSI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("GSI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("GSI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("GSI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("GSI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("GSI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GSI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GSI_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("GSI_GEOHASH_PRECISION"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.GeohashPrecision = p
		}
	}
	if v := os.Getenv("GSI_UPDATE_NGRAMS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.UpdateNgrams = b
		}
	}
	if v := os.Getenv("GSI_PURGE_HOUSENUMBER_BUCKETS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.PurgeHousenumberBuckets = b
		}
	}
	if v := os.Getenv("GSI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GSI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
