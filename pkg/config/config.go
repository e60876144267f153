// Package config holds the configuration surface consumed by the application
// factory and its runtimes.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (RACKBRIDGE_*)
//  2. Configuration file (YAML, TOML or JSON)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/wehubfusion/rackbridge/internal/bytesize"
)

// Compatibility modes accepted by runtime.compat_version
const (
	CompatDefault = "default"
	CompatStrict  = "strict"
)

// Config represents the bridge configuration.
//
// Pointer fields distinguish "not configured" from an explicit zero value;
// the factory falls back to its own candidates only when a field is nil.
type Config struct {
	// Rackup is an inline entry script
	Rackup *string `mapstructure:"rackup"`

	// RackupPath is a resource path of the entry script
	RackupPath *string `mapstructure:"rackup_path"`

	Error     ErrorConfig     `mapstructure:"error"`
	Request   RequestConfig   `mapstructure:"request"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Response  ResponseConfig  `mapstructure:"response"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ErrorConfig configures the shared error application.
type ErrorConfig struct {
	// Enabled set to false replaces the error application with a minimal
	// responder that never allocates a runtime. nil means enabled.
	Enabled *bool `mapstructure:"enabled"`

	// App is an inline error application script
	App *string `mapstructure:"app"`

	// AppPath is a resource path of the error application script
	AppPath *string `mapstructure:"app_path"`
}

// RequestConfig configures request body buffering.
type RequestConfig struct {
	// InitialBufferSize is the initial in-memory buffer for rewindable bodies
	InitialBufferSize *bytesize.ByteSize `mapstructure:"initial_buffer_size"`

	// MaximumBufferSize is the in-memory limit before bodies spill to disk
	MaximumBufferSize *bytesize.ByteSize `mapstructure:"maximum_buffer_size"`
}

// RuntimeConfig configures every runtime created by a factory.
type RuntimeConfig struct {
	Arguments         []string `mapstructure:"arguments"`
	CompatVersion     string   `mapstructure:"compat_version" validate:"omitempty,oneof=default strict"`
	IgnoreEnvironment bool     `mapstructure:"ignore_environment"`
	Home              string   `mapstructure:"home"`
}

// ResponseConfig configures response post-processing.
type ResponseConfig struct {
	// Dechunk decodes chunked bodies produced by the application. nil leaves it
	// off unless the script sets Rack.Response.dechunk.
	Dechunk *bool `mapstructure:"dechunk"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json console"`
}

// SentryConfig configures failure reporting. Empty DSN disables it.
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// keys bound to environment variables
var keys = []string{
	"rackup",
	"rackup_path",
	"error.enabled",
	"error.app",
	"error.app_path",
	"request.initial_buffer_size",
	"request.maximum_buffer_size",
	"runtime.arguments",
	"runtime.compat_version",
	"runtime.ignore_environment",
	"runtime.home",
	"response.dechunk",
	"logging.level",
	"logging.format",
	"sentry.dsn",
	"sentry.environment",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.sample_ratio",
}

// Load loads configuration from an optional file and the environment.
// An empty configPath reads the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RACKBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("configuration file not found: %s", configPath)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults sets default values for unset fields
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Runtime.CompatVersion == "" {
		c.Runtime.CompatVersion = CompatDefault
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "127.0.0.1:4318"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1.0
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Request.InitialBufferSize != nil && *c.Request.InitialBufferSize <= 0 {
		return fmt.Errorf("request.initial_buffer_size must be positive")
	}
	if c.Request.MaximumBufferSize != nil && *c.Request.MaximumBufferSize <= 0 {
		return fmt.Errorf("request.maximum_buffer_size must be positive")
	}
	return nil
}

// ErrorAppDisabled reports whether error.enabled was explicitly set to false.
func (c *Config) ErrorAppDisabled() bool {
	return c.Error.Enabled != nil && !*c.Error.Enabled
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToSliceHookFunc(" "),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// sizes can be written as "32Ki" or plain byte counts.
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
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
