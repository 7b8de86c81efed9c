// Package config loads and validates livecast service configuration.
//
// Configuration is YAML with ${VAR} environment expansion, split into
// sections that mirror the service components: server, auth, database,
// redis, limits, broadcast, and heartbeat.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DBConfig        `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Limits    LimitsConfig    `yaml:"limits"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Health    HealthConfig    `yaml:"health"`
}

// InstanceConfig identifies this service instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig configures the WebSocket listener.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
}

// AuthConfig configures bearer token verification. Tokens are issued by
// the platform's auth service; livecast only validates them.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// DBConfig configures the Postgres connection pool used by the entity
// directory.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	// CacheTTL bounds how long resolved entities are served from cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RedisConfig configures the shared admission counter store. An empty
// Addr disables Redis and the gate runs on its in-process store only.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LimitsConfig configures the admission gate.
type LimitsConfig struct {
	MaxConnections    int           `yaml:"max_connections"`     // concurrent connections per identity
	MessagesPerWindow int           `yaml:"messages_per_window"` // inbound messages per rate window
	RateWindow        time.Duration `yaml:"rate_window"`
	MaxPayloadBytes   int           `yaml:"max_payload_bytes"`
	IdleEviction      time.Duration `yaml:"idle_eviction"` // per-identity state eviction
}

// BroadcastConfig configures the coalescing coordinator.
type BroadcastConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// HeartbeatConfig configures per-connection liveness probing.
type HeartbeatConfig struct {
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
}

// HealthConfig configures the health/stats HTTP endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
