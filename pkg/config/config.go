// Package config loads the instancegraph YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazu/instancegraph/pkg/payload"
	"github.com/chazu/instancegraph/pkg/store"
	"github.com/chazu/instancegraph/pkg/unpack"
	"github.com/chazu/instancegraph/pkg/xform"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "INSTANCEGRAPH_"

// Config holds all instancegraph configuration.
type Config struct {
	RootName    string        `yaml:"root_name"`
	TargetUnits string        `yaml:"target_units"`
	MaxDepth    int           `yaml:"max_depth"`
	Codec       string        `yaml:"codec"`
	EvalTimeout time.Duration `yaml:"eval_timeout"`
	Log         LogConfig     `yaml:"log"`
	Store       StoreConfig   `yaml:"store"`
	Convert     ConvertConfig `yaml:"convert"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects and configures the payload store.
type StoreConfig struct {
	Driver    store.Driver `yaml:"driver"`
	Path      string       `yaml:"path"`       // sqlite
	DSN       string       `yaml:"dsn"`        // postgres
	Bucket    string       `yaml:"bucket"`     // s3
	Region    string       `yaml:"region"`     // s3
	Endpoint  string       `yaml:"endpoint"`   // s3
	PathStyle bool         `yaml:"path_style"` // s3
	Prefix    string       `yaml:"prefix"`     // s3
	URL       string       `yaml:"url"`        // http
}

// ConvertConfig tunes atomic conversion.
type ConvertConfig struct {
	Kernel    string `yaml:"kernel"` // sdfx or manifold
	Workers   int    `yaml:"workers"`
	CacheSize int    `yaml:"cache_size"`
	Mesh      bool   `yaml:"mesh"`
	MeshCells int    `yaml:"mesh_cells"` // sdfx
	Segments  int    `yaml:"segments"`   // manifold cylinder sides
}

// Geometry kernels.
const (
	KernelSdfx     = "sdfx"
	KernelManifold = "manifold"
)

// MetricsConfig controls the Prometheus endpoint of the server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.TargetUnits == "" {
		c.TargetUnits = xform.UnitsMillimeters
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = unpack.DefaultMaxDepth
	}
	if c.Codec == "" {
		c.Codec = payload.CodecJSON
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverSQLite
	}
	if c.Store.Driver == store.DriverSQLite && c.Store.Path == "" {
		c.Store.Path = "instancegraph.db"
	}
	if c.Convert.Kernel == "" {
		c.Convert.Kernel = KernelSdfx
	}
	if c.Convert.CacheSize <= 0 {
		c.Convert.CacheSize = 1024
	}
	if c.Convert.MeshCells <= 0 {
		c.Convert.MeshCells = 64
	}
	if c.Convert.Segments <= 0 {
		c.Convert.Segments = 32
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":8080"
	}
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := xform.NormalizeUnits(c.TargetUnits); err != nil {
		errs = append(errs, fmt.Errorf("target_units: %w", err))
	}
	if c.RootName != "" {
		if err := store.ValidateKey(c.RootName); err != nil {
			errs = append(errs, fmt.Errorf("root_name: %w", err))
		}
	}
	if _, err := payload.CodecByName(c.Codec); err != nil {
		errs = append(errs, fmt.Errorf("codec: %w", err))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	switch c.Store.Driver {
	case store.DriverMemory, store.DriverSQLite:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn: required for postgres"))
		}
	case store.DriverS3:
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("store.bucket: required for s3"))
		}
	case store.DriverHTTP:
		if c.Store.URL == "" {
			errs = append(errs, errors.New("store.url: required for http"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	switch c.Convert.Kernel {
	case KernelSdfx, KernelManifold:
	default:
		errs = append(errs, fmt.Errorf("convert.kernel: unknown kernel %q", c.Convert.Kernel))
	}
	if c.Convert.Workers < 0 {
		errs = append(errs, errors.New("convert.workers: must not be negative"))
	}
	return errors.Join(errs...)
}

// Load reads path (if not empty), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	c.defaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// applyEnv overrides the store and logging settings from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var driver string
	str("STORE_DRIVER", &driver)
	if driver != "" {
		c.Store.Driver = store.Driver(strings.ToLower(driver))
	}
	str("STORE_PATH", &c.Store.Path)
	str("STORE_DSN", &c.Store.DSN)
	str("STORE_BUCKET", &c.Store.Bucket)
	str("STORE_REGION", &c.Store.Region)
	str("STORE_ENDPOINT", &c.Store.Endpoint)
	str("STORE_URL", &c.Store.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if v, ok := lookup(EnvPrefix + "STORE_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sSTORE_PATH_STYLE: %w", EnvPrefix, err)
		}
		c.Store.PathStyle = b
	}
	return nil
}
