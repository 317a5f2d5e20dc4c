// Package config loads strata runtime configuration from an optional YAML
// file overlaid with STRATA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// StorageDriver identifies a concrete store engine.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // Redis key
	StorageBlob     StorageDriver = "blob"     // one blob per commit
)

// Config is the top-level strata configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Codec   string        `yaml:"codec"` // json or cbor
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and configures the store engine.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path,omitempty"`
	PostgresDSN string        `yaml:"postgres_dsn,omitempty"`
	RedisAddr   string        `yaml:"redis_addr,omitempty"`
	RedisPrefix string        `yaml:"redis_prefix,omitempty"`
	BlobPrefix  string        `yaml:"blob_prefix,omitempty"`
	// BlobRetain bounds how many committed blobs the blob engine keeps; 0 keeps all.
	BlobRetain int `yaml:"blob_retain,omitempty"`
}

// BlobConfig selects the blob driver backing the blob engine.
type BlobConfig struct {
	Driver     string `yaml:"driver"` // fs, s3 or memory
	FSRoot     string `yaml:"fs_root,omitempty"`
	S3Bucket   string `yaml:"s3_bucket,omitempty"`
	S3Region   string `yaml:"s3_region,omitempty"`
	S3Endpoint string `yaml:"s3_endpoint,omitempty"`
	PathStyle  bool   `yaml:"s3_path_style,omitempty"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver:      StorageMemory,
			SQLitePath:  "./strata.db",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "strata",
			BlobPrefix:  "strata/state",
		},
		Blob:  BlobConfig{Driver: "fs", FSRoot: "./blobdata", S3Region: "us-east-1"},
		Codec: "json",
		Log:   LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (when non-empty) over the defaults, applies the
// environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays STRATA_* variables found through lookup.
//
//	STRATA_STORAGE_DRIVER: memory|sqlite|postgres|redis|blob (default memory)
//	STRATA_SQLITE_PATH, STRATA_POSTGRES_DSN, STRATA_REDIS_ADDR, STRATA_REDIS_PREFIX
//	STRATA_BLOB_PREFIX, STRATA_BLOB_RETAIN
//	STRATA_BLOB_DRIVER: fs|s3|memory, STRATA_BLOB_FS_ROOT
//	STRATA_BLOB_S3_BUCKET, STRATA_BLOB_S3_REGION, STRATA_BLOB_S3_ENDPOINT, STRATA_BLOB_S3_PATH_STYLE
//	STRATA_CODEC: json|cbor
//	STRATA_LOG_LEVEL, STRATA_LOG_FORMAT
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	var driver string
	str("STRATA_STORAGE_DRIVER", &driver)
	if driver != "" {
		c.Storage.Driver = StorageDriver(driver)
	}
	str("STRATA_SQLITE_PATH", &c.Storage.SQLitePath)
	str("STRATA_POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("STRATA_REDIS_ADDR", &c.Storage.RedisAddr)
	str("STRATA_REDIS_PREFIX", &c.Storage.RedisPrefix)
	str("STRATA_BLOB_PREFIX", &c.Storage.BlobPrefix)
	str("STRATA_BLOB_DRIVER", &c.Blob.Driver)
	str("STRATA_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("STRATA_BLOB_S3_BUCKET", &c.Blob.S3Bucket)
	str("STRATA_BLOB_S3_REGION", &c.Blob.S3Region)
	str("STRATA_BLOB_S3_ENDPOINT", &c.Blob.S3Endpoint)
	str("STRATA_CODEC", &c.Codec)
	str("STRATA_LOG_LEVEL", &c.Log.Level)
	str("STRATA_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("STRATA_BLOB_RETAIN"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STRATA_BLOB_RETAIN: %w", err)
		}
		c.Storage.BlobRetain = n
	}
	if v, ok := lookup("STRATA_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STRATA_BLOB_S3_PATH_STYLE: %w", err)
		}
		c.Blob.PathStyle = b
	}
	return nil
}

// Validate checks enumerations and the settings the selected drivers need.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for the redis driver"))
		}
	case StorageBlob:
		if c.Storage.BlobPrefix == "" {
			errs = append(errs, errors.New("storage.blob_prefix is required for the blob driver"))
		}
		if c.Storage.BlobRetain < 0 {
			errs = append(errs, fmt.Errorf("storage.blob_retain must be >= 0, got %d", c.Storage.BlobRetain))
		}
		switch c.Blob.Driver {
		case "fs", "memory":
		case "s3":
			if c.Blob.S3Bucket == "" {
				errs = append(errs, errors.New("blob.s3_bucket is required for the s3 blob driver"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown blob driver %q (must be fs, s3 or memory)", c.Blob.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch strings.ToLower(c.Codec) {
	case "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q (must be json or cbor)", c.Codec))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (must be json or console)", c.Log.Format))
	}
	return errors.Join(errs...)
}
