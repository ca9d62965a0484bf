package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/tiercache/internal/cache"
	"github.com/objectfs/tiercache/pkg/errors"
	"github.com/objectfs/tiercache/pkg/retry"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig   `yaml:"global"`
	Caches  []cache.Config `yaml:"caches"`
	Monitor MonitorConfig  `yaml:"monitor"`
	Warmup  []WarmupEntry  `yaml:"warmup"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	HTTPAddress string `yaml:"http_address"`
}

// MonitorConfig represents periodic stats collection and its sinks
type MonitorConfig struct {
	Interval   time.Duration    `yaml:"interval"`
	Retry      retry.Config     `yaml:"retry"`
	Log        LogSinkConfig    `yaml:"log"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Redis      RedisConfig      `yaml:"redis"`
	S3         S3Config         `yaml:"s3"`
}

// LogSinkConfig represents the structured-log stats sink
type LogSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// PrometheusConfig represents the Prometheus collector settings
type PrometheusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// RedisConfig represents the Redis stats sink
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// S3Config represents the S3 stats sink
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// WarmupEntry is one value loaded into a named cache at startup.
// Value holds the raw JSON payload.
type WarmupEntry struct {
	Cache string        `yaml:"cache"`
	Key   string        `yaml:"key"`
	Value string        `yaml:"value"`
	TTL   time.Duration `yaml:"ttl"`
}

// DefaultCaches returns the three named caches a fresh install starts with
func DefaultCaches() []cache.Config {
	return []cache.Config{
		{
			Name:               "api-response",
			MaxHotSize:         1000,
			MaxWarmSize:        5000,
			DefaultTTL:         5 * time.Minute,
			PromotionThreshold: cache.DefaultPromotionThreshold,
			CleanupInterval:    cache.DefaultCleanupInterval,
		},
		{
			Name:               "user-data",
			MaxHotSize:         500,
			MaxWarmSize:        2000,
			DefaultTTL:         15 * time.Minute,
			PromotionThreshold: cache.DefaultPromotionThreshold,
			CleanupInterval:    cache.DefaultCleanupInterval,
		},
		{
			Name:               "static-content",
			MaxHotSize:         200,
			MaxWarmSize:        1000,
			DefaultTTL:         time.Hour,
			PromotionThreshold: cache.DefaultPromotionThreshold,
			CleanupInterval:    cache.DefaultCleanupInterval,
		},
	}
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFormat:   "text",
			HTTPAddress: "localhost:8080",
		},
		Caches: DefaultCaches(),
		Monitor: MonitorConfig{
			Interval: 5 * time.Minute,
			Retry:    retry.DefaultConfig(),
			Log: LogSinkConfig{
				Enabled: true,
			},
			Prometheus: PrometheusConfig{
				Enabled:   true,
				Namespace: "tiercache",
			},
			Redis: RedisConfig{
				Enabled:   false,
				Address:   "localhost:6379",
				KeyPrefix: "tiercache:stats",
				TTL:       time.Hour,
			},
			S3: S3Config{
				Enabled: false,
				Prefix:  "tiercache/stats",
				Region:  "us-east-1",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to read config file").
			WithComponent("config").
			WithContext("path", filename).
			WithCause(err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.NewError(errors.ErrCodeConfigLoad, "failed to parse config file").
			WithComponent("config").
			WithContext("path", filename).
			WithCause(err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("TIERCACHE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("TIERCACHE_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}
	if val := os.Getenv("TIERCACHE_HTTP_ADDRESS"); val != "" {
		c.Global.HTTPAddress = val
	}

	// Monitor settings
	if val := os.Getenv("TIERCACHE_MONITOR_INTERVAL"); val != "" {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return errors.NewError(errors.ErrCodeConfigLoad, "invalid TIERCACHE_MONITOR_INTERVAL").
				WithComponent("config").
				WithDetail("value", val).
				WithCause(err)
		}
		c.Monitor.Interval = duration
	}
	if val := os.Getenv("TIERCACHE_REDIS_ADDRESS"); val != "" {
		c.Monitor.Redis.Address = val
		c.Monitor.Redis.Enabled = true
	}
	if val := os.Getenv("TIERCACHE_S3_BUCKET"); val != "" {
		c.Monitor.S3.Bucket = val
		c.Monitor.S3.Enabled = true
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders the configuration as YAML
func (c *Configuration) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}
	if !containsString(validLogLevels, strings.ToUpper(c.Global.LogLevel)) {
		return invalid("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if !containsString(validFormats, strings.ToLower(c.Global.LogFormat)) {
		return invalid("invalid log_format: %s (must be one of: %s)",
			c.Global.LogFormat, strings.Join(validFormats, ", "))
	}

	if len(c.Caches) == 0 {
		return invalid("at least one cache must be configured")
	}

	names := make(map[string]bool, len(c.Caches))
	for i := range c.Caches {
		spec := c.Caches[i]
		if spec.Name == "" {
			return invalid("cache %d has no name", i)
		}
		if names[spec.Name] {
			return invalid("duplicate cache name: %s", spec.Name)
		}
		names[spec.Name] = true

		if err := spec.Validate(); err != nil {
			return invalid("cache %s: %v", spec.Name, err)
		}
	}

	if c.Monitor.Interval <= 0 {
		return invalid("monitor interval must be greater than 0")
	}
	if c.Monitor.Retry.MaxAttempts < 0 {
		return invalid("monitor retry max_attempts must not be negative")
	}
	if c.Monitor.Redis.Enabled && c.Monitor.Redis.Address == "" {
		return invalid("redis sink enabled without an address")
	}
	if c.Monitor.Redis.TTL < 0 {
		return invalid("redis ttl must not be negative")
	}
	if c.Monitor.S3.Enabled && c.Monitor.S3.Bucket == "" {
		return invalid("s3 sink enabled without a bucket")
	}

	for i, w := range c.Warmup {
		if !names[w.Cache] {
			return invalid("warmup entry %d targets unknown cache: %s", i, w.Cache)
		}
		if w.Key == "" {
			return invalid("warmup entry %d has no key", i)
		}
		if !json.Valid([]byte(w.Value)) {
			return invalid("warmup entry %d (%s) value is not valid JSON", i, w.Key)
		}
	}

	return nil
}

// CacheNames returns configured cache names in declaration order
func (c *Configuration) CacheNames() []string {
	names := make([]string, 0, len(c.Caches))
	for _, spec := range c.Caches {
		names = append(names, spec.Name)
	}
	return names
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeConfigValidation, format, args...).
		WithComponent("config").
		WithOperation("validate")
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
