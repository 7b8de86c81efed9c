package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Limits.MaxConnections < 1 {
		return errors.New("limits.max_connections must be >= 1")
	}
	if c.Limits.MessagesPerWindow < 1 {
		return errors.New("limits.messages_per_window must be >= 1")
	}
	if c.Limits.MaxPayloadBytes < 1 {
		return errors.New("limits.max_payload_bytes must be >= 1")
	}
	if c.Limits.RateWindow <= 0 {
		return errors.New("limits.rate_window must be > 0")
	}

	if c.Broadcast.DebounceWindow <= 0 {
		return errors.New("broadcast.debounce_window must be > 0")
	}

	if c.Heartbeat.PingInterval <= 0 {
		return errors.New("heartbeat.ping_interval must be > 0")
	}
	if c.Heartbeat.PongTimeout <= c.Heartbeat.PingInterval {
		return errors.New("heartbeat.pong_timeout must be greater than ping_interval")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}
