// Package config maps PICTOCORE_* environment variables onto a typed struct.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"pictocore/internal/blob/core"
)

// StorageDriver selects the record store backend.
type StorageDriver string

// Supported record store backends.
const (
	StorageMemory   StorageDriver = "memory"
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

// Config holds all runtime configuration.
type Config struct {
	StorageDriver StorageDriver `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:"pictocore.db"`
	PostgresDSN   string        `env:"POSTGRES_DSN"`

	Blob BlobConfig `envPrefix:"BLOB_"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
	SeedFile      string `env:"SEED_FILE"`
}

// BlobConfig configures asset storage.
type BlobConfig struct {
	Driver core.Driver `env:"DRIVER" envDefault:"fs"`
	FSRoot string      `env:"FS_ROOT" envDefault:"./blobdata"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3PathStyle       bool   `env:"S3_PATH_STYLE" envDefault:"false"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

const prefix = "PICTOCORE_"

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: prefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	c.StorageDriver = StorageDriver(strings.ToLower(string(c.StorageDriver)))
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.StorageDriver)
	}
	switch c.Blob.Driver {
	case core.DriverFilesystem, core.DriverMemory:
	case core.DriverS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("config: %sBLOB_S3_BUCKET required for s3 driver", prefix)
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	return nil
}
