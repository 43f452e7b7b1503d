package actor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codewandler/mailroom/core/processor"
)

// SettingsConfig is the YAML form of Settings.
type SettingsConfig struct {
	QueueLimit int `yaml:"queue_limit"`
	// OnError is "continue" or "abort".
	OnError string `yaml:"on_error"`
}

// Config is the YAML form of a system configuration:
//
//	workers: 8
//	throughput: 64
//	defaults:
//	  queue_limit: 0
//	  on_error: continue
//	actors:
//	  mapper:
//	    queue_limit: 1000
//	    on_error: abort
type Config struct {
	ID         string                    `yaml:"id"`
	Workers    int                       `yaml:"workers"`
	Throughput int                       `yaml:"throughput"`
	Defaults   SettingsConfig            `yaml:"defaults"`
	Actors     map[string]SettingsConfig `yaml:"actors"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if c.Workers < 0 || c.Throughput < 0 {
		return nil, fmt.Errorf("workers and throughput must not be negative")
	}
	if _, err := c.Defaults.settings(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	for name, sc := range c.Actors {
		if _, err := sc.settings(); err != nil {
			return nil, fmt.Errorf("actor %q: %w", name, err)
		}
	}
	return &c, nil
}

// Options returns system Options for c. Context, Logger and Metrics are left
// for the caller.
func (c *Config) Options() Options {
	d, _ := c.Defaults.settings()
	return Options{
		ID:         c.ID,
		Workers:    c.Workers,
		Throughput: c.Throughput,
		Defaults:   d,
	}
}

// SettingsFor returns the settings configured for name, falling back to the
// defaults.
func (c *Config) SettingsFor(name string) Settings {
	d, _ := c.Defaults.settings()
	sc, ok := c.Actors[name]
	if !ok {
		return d
	}
	s, _ := sc.settings()
	return s.withDefaults(d)
}

func (sc SettingsConfig) settings() (Settings, error) {
	if sc.QueueLimit < 0 {
		return Settings{}, fmt.Errorf("queue_limit must not be negative")
	}
	s := Settings{QueueLimit: sc.QueueLimit}
	switch strings.ToLower(strings.TrimSpace(sc.OnError)) {
	case "":
	case "continue":
		s.ErrorHandler = processor.ContinueOnError
	case "abort":
		s.ErrorHandler = processor.AbortOnError
	default:
		return Settings{}, fmt.Errorf("unknown on_error %q", sc.OnError)
	}
	return s, nil
}
