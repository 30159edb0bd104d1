package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const envVarPrefix = "HEAPCTL"

// Config holds settings read from HEAPCTL_* environment variables. Command
// line flags override them.
type Config struct {
	Size     int    `split_words:"true" default:"65536"`
	Seed     int64  `split_words:"true" default:"1"`
	Checked  bool   `split_words:"true" default:"true"`
	LogDir   string `split_words:"true"`
	LogLevel string `split_words:"true" default:"info"`
	Format   string `split_words:"true" default:"text"`
}

// LoadConfig reads the environment.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("invalid size %d: must be positive", c.Size)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: want text or json", c.Format)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
