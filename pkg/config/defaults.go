package config

import (
	"time"

	"github.com/xystevensun/spark-private/internal/bytesize"
)

// Default values applied when the config file omits a field.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stderr"

	DefaultBufferSize      = bytesize.ByteSize(65536)
	DefaultConnectTimeout  = time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultTokenTTL        = time.Hour
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsPort     = 9090
)

// GetDefaultConfig returns a configuration populated with defaults.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Broadcast.Compress = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in defaults for any unset field. The compress
// default lives in setupViper, not here: a bool zero value cannot be told
// apart from explicit false once decoded.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = DefaultLogOutput
	}

	if cfg.Broadcast.BufferSize == 0 {
		cfg.Broadcast.BufferSize = DefaultBufferSize
	}
	if cfg.Broadcast.ConnectTimeout == 0 {
		cfg.Broadcast.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Broadcast.CleanupInterval == 0 {
		cfg.Broadcast.CleanupInterval = DefaultCleanupInterval
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}
