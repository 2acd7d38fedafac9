package app

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"b3-dataflow/internal/codec"
	"b3-dataflow/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. B3_TICKER.
const EnvPrefix = "B3"

// Config holds application configuration. Values come from DefaultConfig,
// then an optional YAML file, then B3_* environment variables.
type Config struct {
	// Source
	Ticker         string        `yaml:"ticker" envconfig:"TICKER" validate:"required"`
	TickerLabel    string        `yaml:"ticker_label" envconfig:"TICKER_LABEL" validate:"required"`
	Dataset        string        `yaml:"dataset" envconfig:"DATASET" validate:"required,excludesall=/."`
	Lookback       time.Duration `yaml:"lookback" envconfig:"LOOKBACK" validate:"gt=0"`
	Timezone       string        `yaml:"timezone" envconfig:"TIMEZONE" validate:"required"`
	Provider       string        `yaml:"provider" envconfig:"PROVIDER" validate:"oneof=yahoo polygon"`
	YahooBaseURL   string        `yaml:"yahoo_base_url" envconfig:"YAHOO_BASE_URL" validate:"omitempty,url"`
	PolygonBaseURL string        `yaml:"polygon_base_url" envconfig:"POLYGON_BASE_URL" validate:"omitempty,url"`
	PolygonAPIKeys []string      `yaml:"polygon_api_keys" envconfig:"POLYGON_API_KEYS" validate:"required_if=Provider polygon,dive,required"`

	// Storage
	Storage       string `yaml:"storage" envconfig:"STORAGE" validate:"oneof=local nats"`
	DataDir       string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	BucketRaw     string `yaml:"bucket_raw" envconfig:"BUCKET_RAW" validate:"required,excludesall=/.*>"`
	BucketRefined string `yaml:"bucket_refined" envconfig:"BUCKET_REFINED" validate:"required,excludesall=/.*>"`
	RawPrefix     string `yaml:"raw_prefix" envconfig:"RAW_PREFIX" validate:"required,endswith=/,startsnotwith=/"`
	RefinedPrefix string `yaml:"refined_prefix" envconfig:"REFINED_PREFIX" validate:"required,endswith=/,startsnotwith=/,nefield=RawPrefix"`
	Compression   string `yaml:"compression" envconfig:"COMPRESSION" validate:"oneof=none snappy zstd gzip lz4"`

	// Transport
	NATSURL         string `yaml:"nats_url" envconfig:"NATS_URL"`
	Runner          string `yaml:"runner" envconfig:"RUNNER" validate:"oneof=local nats"`
	JobName         string `yaml:"job_name" envconfig:"JOB_NAME" validate:"required"`
	JobSubject      string `yaml:"job_subject" envconfig:"JOB_SUBJECT" validate:"required"`
	HTTPAddr        string `yaml:"http_addr" envconfig:"HTTP_ADDR" validate:"required"`
	ReadConcurrency int    `yaml:"read_concurrency" envconfig:"READ_CONCURRENCY" validate:"gte=1,lte=64"`

	// Logging
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=text json"`
}

// DefaultConfig returns the configuration of the daily IBOVESPA pipeline.
func DefaultConfig() *Config {
	return &Config{
		Ticker:          "^BVSP",
		TickerLabel:     "IBOV",
		Dataset:         "ibov",
		Lookback:        30 * 24 * time.Hour,
		Timezone:        "America/Sao_Paulo",
		Provider:        "yahoo",
		Storage:         "local",
		DataDir:         "data",
		BucketRaw:       "b3-raw",
		BucketRefined:   "b3-refined",
		RawPrefix:       "raw/",
		RefinedPrefix:   "refined/",
		Compression:     string(codec.CompressionZstd),
		Runner:          "local",
		JobName:         "b3-etl-job",
		JobSubject:      "b3.jobs",
		HTTPAddr:        ":8080",
		ReadConcurrency: 4,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %v: %w", path, err, errors.ErrInvalidConfig)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %v: %w", err, errors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidConfig)
	}
	if (c.Storage == "nats" || c.Runner == "nats") && c.NATSURL == "" {
		return fmt.Errorf("nats_url is required when storage or runner is nats: %w", errors.ErrInvalidConfig)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %v: %w", c.Timezone, err, errors.ErrInvalidConfig)
	}
	return nil
}

// Location returns the timezone partitions are dated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CodecOptions returns the parquet options for written partitions.
// Validate rejects unknown names, so the fallback only covers an
// unvalidated Config.
func (c *Config) CodecOptions() codec.Options {
	comp, err := codec.ParseCompression(c.Compression)
	if err != nil {
		return codec.DefaultOptions()
	}
	return codec.Options{Compression: comp}
}

// UsesNATS reports whether any component needs a NATS connection.
func (c *Config) UsesNATS() bool {
	return c.Storage == "nats" || c.Runner == "nats"
}
