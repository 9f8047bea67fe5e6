package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/plectr/reconcile/internal/s3client"
	"github.com/plectr/reconcile/pkg/blobstore"
)

const envPrefix = "PLECTR_"

const (
	BackendS3     = "s3"
	BackendFS     = "fs"
	BackendMemory = "memory"
)

// DefaultPaths are tried in order when no config file is given.
var DefaultPaths = []string{"./.plectr/reconcile.toml", "$HOME/.plectr-reconcile.toml"}

type Config struct {
	Server      ServerConfig `koanf:"server"`
	Blobs       BlobsConfig  `koanf:"blobs"`
	Log         LogConfig    `koanf:"log"`
	Excludes    []string     `koanf:"excludes"`
	Concurrency int          `koanf:"concurrency"`
}

type ServerConfig struct {
	URL               string        `koanf:"url"`
	Token             string        `koanf:"token"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

type BlobsConfig struct {
	Backend string `koanf:"backend"`
	Hash    string `koanf:"hash"`
	// Location is an s3:// URI that sets Bucket and Prefix in one go.
	Location   string `koanf:"location"`
	Dir        string `koanf:"dir"`
	Bucket     string `koanf:"bucket"`
	Prefix     string `koanf:"prefix"`
	Region     string `koanf:"region"`
	Profile    string `koanf:"profile"`
	MaxRetries int    `koanf:"max_retries"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.url":                 "http://localhost:3000",
		"server.timeout":             "30s",
		"server.requests_per_second": 0,
		"blobs.backend":              BackendS3,
		"blobs.hash":                 blobstore.DefaultHash,
		"blobs.max_retries":          s3client.DefaultRetryPolicy().MaxRetries,
		"log.level":                  "warn",
		"log.format":                 "console",
		"concurrency":                8,
	}
}

// Load layers defaults, a TOML file, PLECTR_ environment variables and
// overrides, later sources winning. overrides use dotted keys such as
// "server.url" and are typically set from command line flags.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		for _, path := range DefaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %w", path, err)
			}
			break
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.Blobs.Location != "" {
		bucket, prefix, err := s3client.ParseS3URI(cfg.Blobs.Location)
		if err != nil {
			return nil, fmt.Errorf("blobs.location: %w", err)
		}
		cfg.Blobs.Bucket = bucket
		cfg.Blobs.Prefix = prefix
	}

	return &cfg, nil
}

// envKey maps PLECTR_BLOBS_MAX_RETRIES to blobs.max_retries: only the first
// underscore separates section from key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.URL == "" {
		result = multierror.Append(result, errors.New("server.url is required"))
	}
	if c.Server.Timeout < 0 {
		result = multierror.Append(result, errors.New("server.timeout must not be negative"))
	}
	if c.Server.RequestsPerSecond < 0 {
		result = multierror.Append(result, errors.New("server.requests_per_second must not be negative"))
	}

	if _, err := blobstore.NewHasher(c.Blobs.Hash); err != nil {
		result = multierror.Append(result, fmt.Errorf("blobs.hash: %w", err))
	}
	switch c.Blobs.Backend {
	case BackendS3:
		if c.Blobs.Bucket == "" {
			result = multierror.Append(result, errors.New("blobs.bucket is required for the s3 backend"))
		}
		if c.Blobs.MaxRetries < 0 {
			result = multierror.Append(result, errors.New("blobs.max_retries must not be negative"))
		}
	case BackendFS:
		if c.Blobs.Dir == "" {
			result = multierror.Append(result, errors.New("blobs.dir is required for the fs backend"))
		}
	case BackendMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("blobs.backend: unknown backend %q", c.Blobs.Backend))
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if c.Concurrency < 1 {
		result = multierror.Append(result, errors.New("concurrency must be at least 1"))
	}

	return result.ErrorOrNil()
}
