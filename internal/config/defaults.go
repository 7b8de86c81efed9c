package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerAddr        = ":8080"
	DefaultWriteTimeout      = 5 * time.Second
	DefaultSendBuffer        = 256
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultCacheTTL          = 30 * time.Second
	DefaultMaxConnections    = 5
	DefaultMessagesPerWindow = 20
	DefaultRateWindow        = 1 * time.Second
	DefaultMaxPayloadBytes   = 16 * 1024
	DefaultIdleEviction      = 5 * time.Minute
	DefaultDebounceWindow    = 100 * time.Millisecond
	DefaultPingInterval      = 15 * time.Second
	DefaultPongTimeout       = 30 * time.Second
	DefaultHealthPort        = 9090
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.CacheTTL == 0 {
		c.Database.CacheTTL = DefaultCacheTTL
	}

	// Limits defaults
	if c.Limits.MaxConnections == 0 {
		c.Limits.MaxConnections = DefaultMaxConnections
	}
	if c.Limits.MessagesPerWindow == 0 {
		c.Limits.MessagesPerWindow = DefaultMessagesPerWindow
	}
	if c.Limits.RateWindow == 0 {
		c.Limits.RateWindow = DefaultRateWindow
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.Limits.IdleEviction == 0 {
		c.Limits.IdleEviction = DefaultIdleEviction
	}

	// Broadcast defaults
	if c.Broadcast.DebounceWindow == 0 {
		c.Broadcast.DebounceWindow = DefaultDebounceWindow
	}

	// Heartbeat defaults
	if c.Heartbeat.PingInterval == 0 {
		c.Heartbeat.PingInterval = DefaultPingInterval
	}
	if c.Heartbeat.PongTimeout == 0 {
		c.Heartbeat.PongTimeout = DefaultPongTimeout
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
