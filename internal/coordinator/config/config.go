// Package config loads router configuration from defaults, an optional YAML file
// and AGENT_ROUTER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/coordinator/cache"
	"github.com/AltairaLabs/agent-router/internal/retry"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. AGENT_ROUTER_SERVER_TRANSPORT
const EnvPrefix = "AGENT_ROUTER"

// Transports supported by the MCP server
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the full router configuration
type Config struct {
	Server        ServerConfig           `mapstructure:"server"`
	Log           LogConfig              `mapstructure:"log"`
	Agents        map[string]AgentConfig `mapstructure:"agents"`
	DefaultAgent  AgentConfig            `mapstructure:"default_agent"`
	Retry         RetryConfig            `mapstructure:"retry"`
	Session       SessionConfig          `mapstructure:"session"`
	Orchestration OrchestrationConfig    `mapstructure:"orchestration"`
	Cache         CacheConfig            `mapstructure:"cache"`
	Archive       ArchiveConfig          `mapstructure:"archive"`
	Routing       RoutingConfig          `mapstructure:"routing"`
}

// ServerConfig selects the MCP transport
type ServerConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	Transport string `mapstructure:"transport"`
	HTTPAddr  string `mapstructure:"http_addr"`
	BaseURL   string `mapstructure:"base_url"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AgentConfig is the endpoint of one agent
type AgentConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RetryConfig holds the agent-call retry policy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Jitter      float64       `mapstructure:"jitter"`
}

// SessionConfig holds session store limits
type SessionConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	MaxHistory    int           `mapstructure:"max_history"`
	HistoryWindow int           `mapstructure:"history_window"`
}

// OrchestrationConfig holds dispatch settings
type OrchestrationConfig struct {
	// Timeout bounds the whole dispatch phase; zero means no overall deadline
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds configuration for result caching
type CacheConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`
	MaxCost int64         `mapstructure:"max_cost"`
}

// ArchiveConfig enables the SQLite task archive when Path is set
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// RoutingConfig points at an optional keyword-table override file
type RoutingConfig struct {
	TablesFile string `mapstructure:"tables_file"`
}

// Load reads configuration. An explicit path must exist; without one,
// agent-router.yaml is looked up in the working directory and
// $HOME/.config/agent-router, and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("agent-router")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/agent-router")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "agent-router")
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("server.transport", TransportStdio)
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.base_url", "")

	v.SetDefault("log.level", "info")

	v.SetDefault("default_agent.endpoint", "")
	v.SetDefault("default_agent.timeout", DefaultAgentTimeout)

	v.SetDefault("retry.max_attempts", DefaultRetryMaxAttempts)
	v.SetDefault("retry.base_delay", DefaultRetryBaseDelay)
	v.SetDefault("retry.max_delay", DefaultRetryMaxDelay)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", 0.25)

	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("session.max_sessions", DefaultMaxSessions)
	v.SetDefault("session.max_history", DefaultMaxHistory)
	v.SetDefault("session.history_window", DefaultHistoryWindow)

	v.SetDefault("orchestration.timeout", DefaultOrchestrationTimeout)

	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.max_cost", DefaultCacheMaxCost)

	v.SetDefault("archive.path", "")
	v.SetDefault("routing.tables_file", "")
}

// Validate checks the configuration for values the router cannot run with
func (c *Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("server.http_addr is required for the http transport")
		}
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, c.Server.Transport)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Session.TTL < 0 || c.Session.MaxSessions < 0 || c.Session.MaxHistory < 0 || c.Session.HistoryWindow < 0 {
		return fmt.Errorf("session limits must not be negative")
	}
	if c.Orchestration.Timeout < 0 {
		return fmt.Errorf("orchestration.timeout must not be negative")
	}
	if _, err := c.Registry(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// RetryPolicy converts the retry section
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       c.Retry.MaxAttempts,
		BaseDelay:         c.Retry.BaseDelay,
		MaxDelay:          c.Retry.MaxDelay,
		BackoffMultiplier: c.Retry.Multiplier,
		JitterFraction:    c.Retry.Jitter,
	}
}

// SessionStore converts the session section
func (c *Config) SessionStore() session.MemoryConfig {
	return session.MemoryConfig{
		TTL:         c.Session.TTL,
		MaxSessions: c.Session.MaxSessions,
		MaxHistory:  c.Session.MaxHistory,
	}
}

// ResultCache converts the cache section
func (c *Config) ResultCache() cache.Config {
	return cache.Config{TTL: c.Cache.TTL, MaxCost: c.Cache.MaxCost}
}

// Registry builds the agent registry; unknown agent names fail here
func (c *Config) Registry() (*agents.Registry, error) {
	endpoints := make(map[string]agents.Endpoint, len(c.Agents))
	for name, a := range c.Agents {
		endpoints[name] = agents.Endpoint{Address: a.Endpoint, Timeout: a.Timeout}
	}
	return agents.NewRegistry(endpoints, agents.Endpoint{
		Address: c.DefaultAgent.Endpoint,
		Timeout: c.DefaultAgent.Timeout,
	})
}
