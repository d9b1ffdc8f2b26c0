// Package config loads the simulator settings from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid")
)

type Config struct {
	World    WorldConfig    `yaml:"world" toml:"world"`
	Physics  PhysicsConfig  `yaml:"physics" toml:"physics"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Scenario ScenarioConfig `yaml:"scenario" toml:"scenario"`
}

type WorldConfig struct {
	Name    string `yaml:"name" toml:"name"`
	SaveDir string `yaml:"save_dir" toml:"save_dir"` // one <name>.yaml per world
}

type PhysicsConfig struct {
	Iterations int           `yaml:"iterations" toml:"iterations"`
	Gravity    float64       `yaml:"gravity" toml:"gravity"`
	TickRate   time.Duration `yaml:"tick_rate" toml:"tick_rate"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "console" or "json"
}

type ScenarioConfig struct {
	Dir   string `yaml:"dir" toml:"dir"`
	Watch bool   `yaml:"watch" toml:"watch"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Name:    "default",
			SaveDir: "saves",
		},
		Physics: PhysicsConfig{
			Iterations: 20,
			Gravity:    0.5,
			TickRate:   time.Second / 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scenario: ScenarioConfig{
			Dir: "scenario/scripts",
		},
	}
}

// Load reads path over the defaults. The format follows the extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	if strings.TrimSpace(c.World.Name) == "" {
		return fmt.Errorf("%w: world.name is empty", ErrInvalid)
	}
	if c.Physics.Iterations <= 0 {
		return fmt.Errorf("%w: physics.iterations must be positive", ErrInvalid)
	}
	if c.Physics.TickRate <= 0 {
		return fmt.Errorf("%w: physics.tick_rate must be positive", ErrInvalid)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}
