// Package config loads spawnpool configuration from YAML with environment
// overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// RegistryConfig configures the pool registry.
type RegistryConfig struct {
	LogStatus          bool          `yaml:"logStatus"`
	AutoWarm           bool          `yaml:"autoWarm"`
	Root               string        `yaml:"root"`
	PoolLimit          int           `yaml:"poolLimit"`
	WarmConcurrency    int           `yaml:"warmConcurrency"`
	InstantiateRetries uint          `yaml:"instantiateRetries"`
	RetryInterval      time.Duration `yaml:"retryInterval"`
}

// DiagnosticsConfig sets how often pool status is flushed to the log.
type DiagnosticsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

// TelemetryConfig configures the OTLP metric exporter.
type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	OTLPEndpoint   string        `yaml:"otlpEndpoint"`
	ServiceName    string        `yaml:"serviceName"`
	OTLPInsecure   bool          `yaml:"otlpInsecure"`
	MetricInterval time.Duration `yaml:"metricInterval"`
}

// ServerConfig configures the HTTP status surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WorkloadConfig drives the synthetic spawn/release loop of the run command.
type WorkloadConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

// AppConfig is the complete spawnpool configuration.
type AppConfig struct {
	Environment  Environment       `yaml:"environment"`
	Registry     RegistryConfig    `yaml:"registry"`
	Diagnostics  DiagnosticsConfig `yaml:"diagnostics"`
	Logging      LoggingConfig     `yaml:"logging"`
	Telemetry    TelemetryConfig   `yaml:"telemetry"`
	Server       ServerConfig      `yaml:"server"`
	Workload     WorkloadConfig    `yaml:"workload"`
	PoolDefaults PoolEntry         `yaml:"poolDefaults"`
	Pools        []PoolEntry       `yaml:"pools"`
}

// Load resolves configuration with precedence: defaults, then YAML, then env
// vars. A missing file is not an error.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	cfg := Default()

	yamlErr := cfg.loadYAML(ctx, configPath)
	if yamlErr != nil && !isConfigNotFoundError(yamlErr) {
		return AppConfig{}, fmt.Errorf("load yaml config: %w", yamlErr)
	}

	if err := cfg.loadEnv(); err != nil {
		return AppConfig{}, fmt.Errorf("load env config: %w", err)
	}

	if err := cfg.Validate(ctx); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Env vars
// are not consulted.
func Parse(ctx context.Context, data []byte) (AppConfig, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(ctx); err != nil {
		return AppConfig{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		Environment: EnvDev,
		Registry: RegistryConfig{
			LogStatus:          false,
			AutoWarm:           true,
			Root:               "",
			PoolLimit:          0,
			WarmConcurrency:    1,
			InstantiateRetries: 1,
			RetryInterval:      50 * time.Millisecond,
		},
		Diagnostics: DiagnosticsConfig{
			Interval: time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "console",
			Development: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			OTLPEndpoint:   "http://localhost:4318",
			ServiceName:    "spawnpool",
			OTLPInsecure:   true,
			MetricInterval: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8890",
		},
		Workload: WorkloadConfig{
			Enabled:  false,
			Interval: 250 * time.Millisecond,
			Burst:    4,
		},
		PoolDefaults: PoolEntry{
			Name:       "",
			Size:       1,
			Kind:       KindPrefab,
			Components: nil,
		},
		Pools: nil,
	}
}

// Marshal renders the configuration as YAML.
func (c AppConfig) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

func isConfigNotFoundError(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (c *AppConfig) loadYAML(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SPAWNPOOL_CONFIG"))
	}
	if path == "" {
		path = "config/app.yaml"
	}

	reader, closer, err := openConfigFile(path)
	if err != nil {
		return err
	}
	defer closer()

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return c.decode(data)
}

// decode unmarshals data over c, so keys absent from the document keep
// their current values.
func (c *AppConfig) decode(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (c *AppConfig) loadEnv() error {
	if env := strings.TrimSpace(os.Getenv("SPAWNPOOL_ENV")); env != "" {
		c.Environment = Environment(normalise(env))
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNPOOL_LOG_STATUS")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SPAWNPOOL_LOG_STATUS: %w", err)
		}
		c.Registry.LogStatus = enabled
	}
	if v := strings.TrimSpace(os.Getenv("SPAWNPOOL_SERVER_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")); v != "" {
		c.Telemetry.ServiceName = v
	}
	return nil
}

// Validate normalises c in place and rejects invalid settings.
func (c *AppConfig) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.Environment = Environment(normalise(string(c.Environment)))
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.Registry.PoolLimit < 0 {
		return fmt.Errorf("registry poolLimit must be >=0")
	}
	if c.Registry.WarmConcurrency <= 0 {
		c.Registry.WarmConcurrency = 1
	}
	if c.Registry.InstantiateRetries == 0 {
		c.Registry.InstantiateRetries = 1
	}
	if c.Diagnostics.Interval <= 0 {
		c.Diagnostics.Interval = time.Second
	}

	c.Logging.Level = normalise(c.Logging.Level)
	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	c.Logging.Encoding = normalise(c.Logging.Encoding)
	switch c.Logging.Encoding {
	case "":
		c.Logging.Encoding = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging encoding: %s", c.Logging.Encoding)
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "spawnpool"
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8890"
	}
	if c.Workload.Interval <= 0 {
		c.Workload.Interval = 250 * time.Millisecond
	}
	if c.Workload.Burst <= 0 {
		c.Workload.Burst = 1
	}

	return c.validatePools()
}

func (c *AppConfig) validatePools() error {
	seen := make(map[string]struct{}, len(c.Pools))
	for i := range c.Pools {
		entry := &c.Pools[i]
		entry.Name = strings.TrimSpace(entry.Name)
		if entry.Name == "" {
			return fmt.Errorf("pools[%d]: name required", i)
		}
		if _, dup := seen[entry.Name]; dup {
			return fmt.Errorf("pools[%d]: duplicate pool %q", i, entry.Name)
		}
		seen[entry.Name] = struct{}{}

		if err := mergo.Merge(entry, c.PoolDefaults); err != nil {
			return fmt.Errorf("pools[%d]: apply defaults: %w", i, err)
		}
		entry.Kind = PoolKind(normalise(string(entry.Kind)))
		if err := entry.validate(c.Registry.PoolLimit); err != nil {
			return fmt.Errorf("pools[%d]: %w", i, err)
		}
	}
	return nil
}

func openConfigFile(path string) (io.Reader, func(), error) {
	var (
		candidates []string
		seen       = make(map[string]struct{})
	)
	addCandidate := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		candidate = filepath.Clean(candidate)
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		candidates = append(candidates, candidate)
	}
	addCandidate(path)
	addCandidate("config/app.yaml")

	var lastErr error
	for _, candidate := range candidates {
		file, err := os.Open(candidate) // #nosec G304 -- configuration paths are controlled by operators.
		if err == nil {
			return file, func() { _ = file.Close() }, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("open app config: %w", err)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return nil, nil, fmt.Errorf("open app config: %w", lastErr)
}
