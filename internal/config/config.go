package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultMaxMissedProbes   = 5
)

type Config struct {
	DatabaseDSN       string
	ServerAddr        string
	SigningKey        []byte
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	MaxMissedProbes   int
	Migrate           bool

	// AdminIds may publish system notifications.
	AdminIds []int
}

// Option customizes optional settings on top of the required ones.
type Option func(*Config)

func WithHeartbeat(interval time.Duration, maxMissed int) Option {
	return func(c *Config) {
		c.HeartbeatInterval = interval
		c.MaxMissedProbes = maxMissed
	}
}

func WithMigrations(enabled bool) Option {
	return func(c *Config) {
		c.Migrate = enabled
	}
}

func WithAdmins(ids ...int) Option {
	return func(c *Config) {
		c.AdminIds = append(c.AdminIds, ids...)
	}
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret decodes to an empty key")
	}

	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, opts ...Option) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		DatabaseDSN:       databaseDSN,
		ServerAddr:        serverAddr,
		SigningKey:        signingKey,
		AllowedOrigins:    allowedOrigins,
		HeartbeatInterval: DefaultHeartbeatInterval,
		MaxMissedProbes:   DefaultMaxMissedProbes,
		Migrate:           true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be positive, got %s", cfg.HeartbeatInterval)
	}
	if cfg.MaxMissedProbes < 0 {
		return nil, fmt.Errorf("max missed probes cannot be negative, got %d", cfg.MaxMissedProbes)
	}

	return cfg, nil
}
