package config

import (
	"fmt"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

type Config struct {
	Environment string `toml:"-"`

	Host                  string `toml:"host"`
	Port                  int    `toml:"port" validate:"min=1,max=65535"`
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port" validate:"required,numeric"`
	// logging
	LogLevel      string `toml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// redis - optional, used for the shared response cache and api rate limiting
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port" validate:"omitempty,numeric"`
	// content source
	ContentHost            string `toml:"content_host" validate:"required,hostname"`
	ContentBaseURL         string `toml:"content_base_url" validate:"omitempty,url"`
	ContentTimeoutSeconds  int    `toml:"content_timeout_seconds" validate:"min=1,max=120"`
	ContentCacheTTLSeconds int    `toml:"content_cache_ttl_seconds" validate:"min=0"`
	CacheBackend           string `toml:"cache_backend" validate:"oneof=memory redis none"`
	CacheSizeMB            int    `toml:"cache_size_mb" validate:"min=1,max=4096"`
	// pages
	HomePostsLimit         int    `toml:"home_posts_limit" validate:"min=1,max=100"`
	BlogIndexLimit         int    `toml:"blog_index_limit" validate:"min=1,max=100"`
	KnownIDsLimit          int    `toml:"known_ids_limit" validate:"min=1,max=100"`
	KnownIDsRefreshMinutes int    `toml:"known_ids_refresh_minutes" validate:"min=0"`
	DisplayTimezone        string `toml:"display_timezone" validate:"required,timezone"`
	SanitizeContent        bool   `toml:"sanitize_content"`
	ProfilePath            string `toml:"profile_path"`
	// api
	APIRateLimitPerMin int      `toml:"api_rate_limit_per_min" validate:"min=0"`
	AllowedOrigins     []string `toml:"allowed_origins"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path, picks the section for env, applies defaults and validates it.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse is Load for an in-memory TOML document.
func Parse(env, tomlData string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(tomlData, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	cfg.Environment = strings.ToLower(env)
	cfg.applyDefaults()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", env, err)
	}
	if cfg.CacheBackend == CacheBackendRedis && cfg.RedisHost == "" {
		return nil, fmt.Errorf("invalid %s config: cache_backend redis requires redis_host", env)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "9091"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RedisHost != "" && c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.ContentHost == "" {
		c.ContentHost = "microcms.io"
	}
	if c.ContentTimeoutSeconds == 0 {
		c.ContentTimeoutSeconds = 10
	}
	if c.ContentCacheTTLSeconds == 0 {
		c.ContentCacheTTLSeconds = 1800
	}
	if c.CacheBackend == "" {
		c.CacheBackend = CacheBackendMemory
	}
	if c.CacheSizeMB == 0 {
		c.CacheSizeMB = 100
	}
	if c.HomePostsLimit == 0 {
		c.HomePostsLimit = 5
	}
	if c.BlogIndexLimit == 0 {
		c.BlogIndexLimit = 50
	}
	if c.KnownIDsLimit == 0 {
		c.KnownIDsLimit = 50
	}
	if c.DisplayTimezone == "" {
		c.DisplayTimezone = "UTC"
	}
}

func (c *Config) ContentTimeout() time.Duration {
	return time.Duration(c.ContentTimeoutSeconds) * time.Second
}

func (c *Config) ContentCacheTTL() time.Duration {
	return time.Duration(c.ContentCacheTTLSeconds) * time.Second
}

func (c *Config) KnownIDsRefreshInterval() time.Duration {
	return time.Duration(c.KnownIDsRefreshMinutes) * time.Minute
}

// DisplayLocation is the location post dates are formatted in.
func (c *Config) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
