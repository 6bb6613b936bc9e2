package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TomlInterest seeds one interest with its affinity weight
type TomlInterest struct {
	Name        string  `toml:"name"`
	Description string  `toml:"description,omitempty"`
	Weight      float64 `toml:"weight,omitempty"`
}

// TomlFeed holds the feed assembly tunables
type TomlFeed struct {
	HalfLifeDays  float64 `toml:"half_life_days"`
	FanoutLimit   int     `toml:"fanout_limit"`
	MaxPageSize   int     `toml:"max_page_size"`
	RetentionDays int     `toml:"retention_days"`
}

// Config represents the top-level configuration
type Config struct {
	Feed      TomlFeed       `toml:"feed"`
	Interests []TomlInterest `toml:"interests"`
}

// Default returns the configuration used when no file is given: 7 day
// half-life, 90 day retention and the package default page/fan-out caps.
func Default() *Config {
	return &Config{
		Feed: TomlFeed{
			HalfLifeDays:  7,
			FanoutLimit:   512,
			MaxPageSize:   100,
			RetentionDays: 90,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	for i := range config.Interests {
		if config.Interests[i].Weight <= 0 {
			config.Interests[i].Weight = 1.0
		}
	}

	return config, nil
}

// HalfLife returns the configured decay half-life as a duration.
func (c *Config) HalfLife() time.Duration {
	return time.Duration(c.Feed.HalfLifeDays * 24 * float64(time.Hour))
}

// Retention returns how long posts are kept before the tidy pass removes
// them. Zero disables tidying.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Feed.RetentionDays) * 24 * time.Hour
}
