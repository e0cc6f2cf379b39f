// Package config provides configuration loading for the vault engine.
// Values come from an optional YAML file with environment overrides on
// top; the zero configuration runs the server on :8080 with the in-memory
// store.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the vault engine configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Store settings
	Store StoreConfig `yaml:"store"`

	// Engine settings
	Engine EngineConfig `yaml:"engine"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen port
	Port string `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// Per-request handler timeout
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	// PostgreSQL connection string; empty selects the in-memory store
	PostgresURL string `yaml:"postgres_url"`

	// Redis URL for the read-through cache; empty disables caching
	RedisURL string `yaml:"redis_url"`

	// Cache entry TTL
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// EngineConfig contains AMM and guard settings.
type EngineConfig struct {
	// Implied YES price for lazily created and reset pools, as a decimal
	// string in (0, 1)
	SeedPrice string `yaml:"seed_price"`

	// When true, corrupt pool state rejects the trade instead of being
	// auto-reset to the seed price
	FailClosed bool `yaml:"fail_closed"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level: debug, info, warn, error
	Level string `yaml:"level"`

	// Log format: text or json
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			CacheTTL: 30 * time.Second,
		},
		Engine: EngineConfig{
			SeedPrice: "0.5",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the YAML file at path (if path is empty or
// the file does not exist, defaults are used) and then applies environment
// overrides: PORT, DATABASE_URL, REDIS_URL, LOG_LEVEL.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Store.PostgresURL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Store.RedisURL = redisURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seed, err := c.SeedPrice()
	if err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	if seed.LessThanOrEqual(decimal.Zero) || seed.GreaterThanOrEqual(one) {
		return fmt.Errorf("config: engine.seed_price %s must be in (0, 1)", seed)
	}
	return nil
}

// SeedPrice parses the configured seed price.
func (c *Config) SeedPrice() (decimal.Decimal, error) {
	seed, err := decimal.NewFromString(c.Engine.SeedPrice)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: invalid engine.seed_price %q: %w", c.Engine.SeedPrice, err)
	}
	return seed, nil
}
