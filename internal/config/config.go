// Package config provides configuration management for launchfeed, loaded
// from an optional YAML file and LAUNCHFEED_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	LaunchAPI  LaunchAPIConfig  `koanf:"launch_api"`
	Enrichment EnrichmentConfig `koanf:"enrichment"`
	Cache      CacheConfig      `koanf:"cache"`
	Queue      QueueConfig      `koanf:"queue"`
	DB         DBConfig         `koanf:"db"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr             string `koanf:"listen_addr"`
	ReadTimeoutSeconds     int    `koanf:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `koanf:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or text
}

// LaunchAPIConfig holds the launch-data provider settings.
type LaunchAPIConfig struct {
	BaseURL               string `koanf:"base_url"`
	PageSize              int    `koanf:"page_size"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds"`
	MaxRetries            int    `koanf:"max_retries"`
	InitialDelayMillis    int    `koanf:"initial_delay_millis"`
}

// EnrichmentConfig holds the completion API settings. An empty API key
// switches the service to the deterministic mock enricher.
type EnrichmentConfig struct {
	APIKey         string  `koanf:"api_key"`
	BaseURL        string  `koanf:"base_url"` // empty uses the default OpenAI endpoint
	Model          string  `koanf:"model"`
	Temperature    float32 `koanf:"temperature"`
	MaxTokens      int     `koanf:"max_tokens"`
	TimeoutSeconds int     `koanf:"timeout_seconds"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Backend              string `koanf:"backend"` // disk or redis
	Dir                  string `koanf:"dir"`
	RedisAddr            string `koanf:"redis_addr"`
	LaunchTTLSeconds     int    `koanf:"launch_ttl_seconds"`
	EnrichmentTTLSeconds int    `koanf:"enrichment_ttl_seconds"`
}

// QueueConfig bounds concurrent enrichment calls.
type QueueConfig struct {
	MaxConcurrent int `koanf:"max_concurrent"`
	Capacity      int `koanf:"capacity"`
}

// DBConfig holds the durable launch store settings.
type DBConfig struct {
	Path string `koanf:"path"`
}

// Load reads configuration from the file at configPath (skipped when empty)
// and then from LAUNCHFEED_ environment variables, applying defaults and
// validating the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("LAUNCHFEED_", "__", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 30
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.LaunchAPI.BaseURL == "" {
		c.LaunchAPI.BaseURL = "https://ll.thespacedevs.com/2.2.0/launch/upcoming"
	}
	if c.LaunchAPI.PageSize == 0 {
		c.LaunchAPI.PageSize = 30
	}
	if c.LaunchAPI.RequestTimeoutSeconds == 0 {
		c.LaunchAPI.RequestTimeoutSeconds = 15
	}
	if c.LaunchAPI.MaxRetries == 0 {
		c.LaunchAPI.MaxRetries = 3
	}
	if c.LaunchAPI.InitialDelayMillis == 0 {
		c.LaunchAPI.InitialDelayMillis = 500
	}
	if c.Enrichment.Model == "" {
		c.Enrichment.Model = "gpt-4o-mini"
	}
	if c.Enrichment.Temperature == 0 {
		c.Enrichment.Temperature = 0.4
	}
	if c.Enrichment.MaxTokens == 0 {
		c.Enrichment.MaxTokens = 600
	}
	if c.Enrichment.TimeoutSeconds == 0 {
		c.Enrichment.TimeoutSeconds = 30
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "disk"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.LaunchTTLSeconds == 0 {
		c.Cache.LaunchTTLSeconds = 300
	}
	if c.Cache.EnrichmentTTLSeconds == 0 {
		c.Cache.EnrichmentTTLSeconds = 86400
	}
	if c.Queue.MaxConcurrent == 0 {
		c.Queue.MaxConcurrent = 5
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = 100
	}
	if c.DB.Path == "" {
		c.DB.Path = "launchfeed.db"
	}
}

// Validate checks invariants defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text (got %q)", c.Logging.Format)
	}
	switch c.Cache.Backend {
	case "disk":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be disk or redis (got %q)", c.Cache.Backend)
	}
	if c.Queue.MaxConcurrent < 0 || c.Queue.Capacity < 0 {
		return fmt.Errorf("queue sizes must be non-negative")
	}
	if c.LaunchAPI.MaxRetries < 0 {
		return fmt.Errorf("launch_api.max_retries must be non-negative")
	}
	return nil
}
