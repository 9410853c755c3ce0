// Package config loads and validates tmcore configuration from defaults, an
// optional config file, .env files and TMCORE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/martinemde/tmcore/failure"
)

// Known providers and storage backends.
var (
	Providers    = []string{"anthropic", "openai", "groq", "ollama", "mistral"}
	StorageTypes = []string{"memory", "sqlite", "redis"}
	LogFormats   = []string{"json", "console"}
)

// Retry configures the completion engine's retry policy. Durations accept
// Go duration strings ("1s", "250ms") or bare numbers of milliseconds.
type Retry struct {
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay       time.Duration `mapstructure:"max_retry_delay"`
	BackoffMultiplier   float64       `mapstructure:"backoff_multiplier"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	RetryOnNetworkError bool          `mapstructure:"retry_on_network_error"`
	RetryOnRateLimit    bool          `mapstructure:"retry_on_rate_limit"`
}

// Logging configures the zap logger.
type Logging struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	// File, when set, sends logs to a rotating file instead of stderr.
	File string `mapstructure:"file"`
}

// Models names the primary and fallback models.
type Models struct {
	Main     string `mapstructure:"main"`
	Fallback string `mapstructure:"fallback"`
}

// Storage selects and configures the storage backend.
type Storage struct {
	Type     string `mapstructure:"type"`
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	Prefix   string `mapstructure:"prefix"`
}

// Config is the complete, validated configuration.
type Config struct {
	AIProvider string            `mapstructure:"ai_provider"`
	APIKeys    map[string]string `mapstructure:"api_keys"`
	Models     Models            `mapstructure:"models"`
	Retry      Retry             `mapstructure:"retry"`
	Logging    Logging           `mapstructure:"logging"`
	Storage    Storage           `mapstructure:"storage"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ai_provider", "anthropic")
	v.SetDefault("models.main", "claude-sonnet-4-5")
	v.SetDefault("models.fallback", "gpt-4o-mini")

	v.SetDefault("retry.retry_attempts", 3)
	v.SetDefault("retry.retry_delay", "1s")
	v.SetDefault("retry.max_retry_delay", "30s")
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("retry.request_timeout", "30s")
	v.SetDefault("retry.retry_on_network_error", true)
	v.SetDefault("retry.retry_on_rate_limit", true)

	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.path", "./data/tmcore.db")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("storage.prefix", "tmcore:")
}

// Load reads configuration. A .env file in the working directory is loaded
// into the environment first if present. configPath may be empty, in which
// case tmcore.yaml is searched for in the usual places and its absence is
// not an error.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, failure.ForConfigFile(configPath, err)
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tmcore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.config/tmcore")
	}

	// Environment variable support: TMCORE_RETRY_RETRY_ATTEMPTS=5
	v.SetEnvPrefix("TMCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, failure.ForFormat(v.ConfigFileUsed(), configFormat(v.ConfigFileUsed()), nil, err)
		}
		// No config file is fine: defaults and environment apply.
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		millisecondsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, failure.ForFormat("configuration", "config", nil, err)
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = map[string]string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisecondsHook decodes bare numbers, and strings holding only a number,
// into durations measured in milliseconds.
func millisecondsHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Millisecond, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(reflect.ValueOf(data).Uint()) * time.Millisecond, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(reflect.ValueOf(data).Float() * float64(time.Millisecond)), nil
	case reflect.String:
		if n, err := strconv.ParseFloat(strings.TrimSpace(data.(string)), 64); err == nil {
			return time.Duration(n * float64(time.Millisecond)), nil
		}
	}
	return data, nil
}

// Default returns the validated default configuration.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Validate checks every field against its schema and reports all
// violations together.
func (c *Config) Validate() error {
	var errs []failure.ValidationDetails
	add := func(field string, value, expected any) {
		errs = append(errs, failure.ValidationDetails{
			Field: field, Value: value, Expected: expected, Rule: "schema", Path: field,
		})
	}

	r := c.Retry
	if r.RetryAttempts < 0 || r.RetryAttempts > 10 {
		add("retry.retry_attempts", r.RetryAttempts, "integer between 0 and 10")
	}
	if r.MaxRetryDelay <= 0 {
		add("retry.max_retry_delay", r.MaxRetryDelay, "positive duration")
	}
	if r.RetryDelay < 0 || (r.MaxRetryDelay > 0 && r.RetryDelay > r.MaxRetryDelay) {
		add("retry.retry_delay", r.RetryDelay, "duration between 0 and retry.max_retry_delay")
	}
	if r.BackoffMultiplier < 1 {
		add("retry.backoff_multiplier", r.BackoffMultiplier, "number >= 1")
	}
	if r.RequestTimeout <= 0 {
		add("retry.request_timeout", r.RequestTimeout, "positive duration")
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		add("logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"})
	}
	if !contains(LogFormats, c.Logging.Format) {
		add("logging.format", c.Logging.Format, LogFormats)
	}
	if !contains(Providers, c.AIProvider) {
		add("ai_provider", c.AIProvider, Providers)
	}
	if !contains(StorageTypes, c.Storage.Type) {
		add("storage.type", c.Storage.Type, StorageTypes)
	}
	if c.Storage.Type == "sqlite" && strings.TrimSpace(c.Storage.Path) == "" {
		add("storage.path", c.Storage.Path, "non-empty path")
	}
	if c.Storage.Type == "redis" && strings.TrimSpace(c.Storage.RedisURL) == "" {
		add("storage.redis_url", c.Storage.RedisURL, "redis:// URL")
	}

	if len(errs) == 0 {
		return nil
	}
	return failure.ForSchema("configuration", errs, failure.Context{
		Operation:   "validateConfiguration",
		UserMessage: "Configuration validation failed. Please check your configuration values.",
	})
}

// APIKey returns the key for provider from the api_keys map, falling back
// to the conventional <PROVIDER>_API_KEY environment variable.
func (c *Config) APIKey(provider string) string {
	if key := c.APIKeys[provider]; key != "" {
		return key
	}
	return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func configFormat(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 && i < len(path)-1 {
		return path[i+1:]
	}
	return "config"
}
