package session

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes a session's network behavior. FlushDebounce is the
// coalescing window between a local edit and the batch append, sized
// so that per-frame gesture updates collapse into few round trips.
type Config struct {
	FlushDebounce time.Duration `yaml:"flush_debounce"`
	PollInterval  time.Duration `yaml:"poll_interval"`
}

func DefaultConfig() Config {
	return Config{
		FlushDebounce: 40 * time.Millisecond,
		PollInterval:  500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FlushDebounce <= 0 {
		c.FlushDebounce = d.FlushDebounce
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// LoadConfig reads a session config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read session config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse session config: %w", err)
	}
	return cfg.withDefaults(), nil
}
