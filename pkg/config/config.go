package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xystevensun/spark-private/internal/bytesize"
)

// Config represents the broadcastd configuration.
//
// It captures the static configuration for one node of the broadcast
// service: logging, the broadcast distribution settings themselves,
// URL authentication, and the metrics endpoint.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (BROADCASTD_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// The broadcast settings are process-wide and fixed once a node is
// initialized. In particular Compress and BufferSize must match between
// the origin and every worker: the transfer protocol carries no
// self-describing header, so a writer/reader mismatch corrupts reads.
// All nodes of a cluster are expected to share one config source.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Broadcast configures the distribution protocol.
	Broadcast BroadcastConfig `mapstructure:"broadcast" yaml:"broadcast"`

	// Auth configures signed fetch URLs.
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" yaml:"output"`
}

// BroadcastConfig configures the broadcast distribution protocol.
type BroadcastConfig struct {
	// Port is the TCP port the origin's transport endpoint binds to.
	// 0 picks an ephemeral port.
	Port int `mapstructure:"port" yaml:"port"`

	// Dir is the working directory holding serialized broadcast files on
	// the origin. Empty means a private temporary directory.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`

	// BaseURI is the externally reachable base URI of the origin's
	// transport endpoint. The origin publishes it after binding; workers
	// must have it set to fetch.
	BaseURI string `mapstructure:"base_uri" yaml:"base_uri,omitempty"`

	// BufferSize is the stream buffer size used on the write and read
	// paths when compression is off. Default: 64KB.
	BufferSize bytesize.ByteSize `mapstructure:"buffer_size" yaml:"buffer_size,omitempty"`

	// Compress enables gzip compression of serialized values. Default: true.
	// Must match across all nodes of the cluster.
	Compress bool `mapstructure:"compress" yaml:"compress"`

	// ConnectTimeout bounds connection establishment on the fetch path.
	// Default: 1m.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// CleanupInterval is how often the origin sweeps the file registry.
	// Default: 1m.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`

	// TTL is how long a registry entry lives before the sweep removes it.
	// The clock starts at publish time; reads do not extend it.
	// 0 disables time-based eviction. Default: 0.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// CachePath is the directory for the node-local badger block cache.
	// Empty selects the in-memory cache.
	CachePath string `mapstructure:"cache_path" yaml:"cache_path,omitempty"`
}

// AuthConfig configures signed fetch URLs.
type AuthConfig struct {
	// Enabled controls whether fetch URLs carry a signed token.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Secret is the HMAC signing key. Must be at least 32 characters
	// when Enabled is true.
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`

	// TokenTTL is the lifetime of a signed URL. Default: 1h.
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint. Default: 9090.
	Port int `mapstructure:"port" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/broadcastd/config.yaml). A missing config file is not
// an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the given path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600 because the file may contain the auth secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for inconsistencies.
func Validate(cfg *Config) error {
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid logging level %q", cfg.Logging.Level)
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", cfg.Logging.Format)
	}

	if cfg.Broadcast.Port < 0 || cfg.Broadcast.Port > 65535 {
		return fmt.Errorf("invalid broadcast port %d", cfg.Broadcast.Port)
	}

	if cfg.Broadcast.BufferSize == 0 {
		return fmt.Errorf("broadcast buffer_size must be positive")
	}

	if cfg.Broadcast.CleanupInterval <= 0 {
		return fmt.Errorf("broadcast cleanup_interval must be positive")
	}

	if cfg.Auth.Enabled && len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("auth secret must be at least 32 characters")
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port %d", cfg.Metrics.Port)
	}

	return nil
}

// setupViper configures environment variables and config file search paths.
func setupViper(v *viper.Viper, configPath string) {
	// Example: BROADCASTD_BROADCAST_COMPRESS=false
	v.SetEnvPrefix("BROADCASTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true must be viper defaults: after unmarshal
	// an omitted field and an explicit false are indistinguishable.
	v.SetDefault("broadcast.compress", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns the combined decode hook for custom config types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize so
// config files can say buffer_size: "64KB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64.
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" or "5m" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path, honoring
// XDG_CONFIG_HOME with a ~/.config fallback.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "broadcastd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "broadcastd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
