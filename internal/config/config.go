// Package config loads settings for the mcp-peer command. Values start at
// Default, are overlaid by an optional TOML file and finally by environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Limits  LimitsConfig  `toml:"limits"`
	Prompts PromptsConfig `toml:"prompts"`
}

type ServerConfig struct {
	Name         string `toml:"name" env:"MCP_SERVER_NAME"`
	Version      string `toml:"version" env:"MCP_SERVER_VERSION"`
	Instructions string `toml:"instructions" env:"MCP_SERVER_INSTRUCTIONS"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"MCP_LOG_LEVEL"`
	Format string `toml:"format" env:"MCP_LOG_FORMAT"`
}

type LimitsConfig struct {
	RequestTimeoutMs      int `toml:"request_timeout_ms" env:"MCP_REQUEST_TIMEOUT_MS"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" env:"MCP_MAX_CONCURRENT_REQUESTS"`
	PageSize              int `toml:"page_size" env:"MCP_PAGE_SIZE"`
}

type PromptsConfig struct {
	// Dir is watched for *.md and *.txt prompt files. Empty disables it.
	Dir string `toml:"dir" env:"MCP_PROMPTS_DIR"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:    "mcp-peer",
			Version: "dev",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Limits: LimitsConfig{
			RequestTimeoutMs:      30000,
			MaxConcurrentRequests: 16,
			PageSize:              50,
		},
	}
}

// Load reads path, if it exists, over Default and then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, err
			}
		} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name must not be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Limits.RequestTimeoutMs < 0 || c.Limits.MaxConcurrentRequests < 0 || c.Limits.PageSize < 0 {
		return errors.New("limits must not be negative")
	}
	return nil
}

// RequestTimeout is the bound on outbound requests. Zero means none.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Limits.RequestTimeoutMs) * time.Millisecond
}

func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
