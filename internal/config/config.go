package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	JWT      JWTConfig      `mapstructure:"jwt" yaml:"jwt"`
	WS       WSConfig       `mapstructure:"ws" yaml:"ws"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Presence PresenceConfig `mapstructure:"presence" yaml:"presence"`
	NATS     NATSConfig     `mapstructure:"nats" yaml:"nats"`
}

// JWTConfig configures token issuance and the identify check.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// Required makes user_online carry a valid token whose subject is the identity.
	Required bool `mapstructure:"required" yaml:"required"`
}

// WSConfig configures the websocket endpoint.
type WSConfig struct {
	PingInterval       time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PingTimeout        time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxContentBytes    int           `mapstructure:"max_content_bytes" yaml:"max_content_bytes"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MailboxSize        int           `mapstructure:"mailbox_size" yaml:"mailbox_size"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path         string        `mapstructure:"path" yaml:"path"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
}

// PresenceConfig configures directory writes for presence transitions.
type PresenceConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// NATSConfig enables event export when URL is set.
type NATSConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		JWT: JWTConfig{
			Secret:   "change-me",
			Issuer:   "pairchat",
			Audience: "pairchat-clients",
			TTL:      24 * time.Hour,
		},
		WS: WSConfig{
			PingInterval:       30 * time.Second,
			PingTimeout:        10 * time.Second,
			MaxMessageBytes:    64 << 10,
			MaxContentBytes:    4 << 10,
			RateLimitPerMinute: 120,
			MailboxSize:        32,
		},
		Store: StoreConfig{
			Path:         "pairchat.db",
			Timeout:      5 * time.Second,
			HistoryLimit: 200,
		},
		Presence: PresenceConfig{
			WriteTimeout: 5 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the fields exposed as command line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is empty"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, fmt.Errorf("jwt.ttl must be positive, got %s", c.JWT.TTL))
	}
	if c.WS.PingInterval > 0 && c.WS.PingTimeout <= 0 {
		errs = append(errs, errors.New("ws.ping_timeout must be positive when pings are enabled"))
	}
	if c.WS.MailboxSize < 0 {
		errs = append(errs, errors.New("ws.mailbox_size must not be negative"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is empty"))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("store.timeout must be positive"))
	}
	if c.Presence.WriteTimeout <= 0 {
		errs = append(errs, errors.New("presence.write_timeout must be positive"))
	}
	if c.Presence.MaxRetries < 0 {
		errs = append(errs, errors.New("presence.max_retries must not be negative"))
	}
	return errors.Join(errs...)
}
