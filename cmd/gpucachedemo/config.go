package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config drives a demo run. Every field can be set from a YAML file and
// overridden by the matching flag.
type Config struct {
	Backend        string `yaml:"backend"`
	Frames         int    `yaml:"frames"`
	BlocksPerFrame int    `yaml:"blocks_per_frame"`
	MaxRunLength   int    `yaml:"max_run_length"`
	FreeEvery      int    `yaml:"free_every"`
	ClearEvery     int    `yaml:"clear_every"`
	Scatter        bool   `yaml:"scatter"`
	MaxRows        int    `yaml:"max_rows"`
	ResizeStress   bool   `yaml:"resize_stress"`
	Seed           int64  `yaml:"seed"`

	Output string `yaml:"output"`
	Scale  int    `yaml:"scale"`
}

func defaults() Config {
	return Config{
		Frames:         60,
		BlocksPerFrame: 256,
		MaxRunLength:   16,
		FreeEvery:      3,
		Seed:           1,
		Scale:          4,
	}
}

// Load reads the configuration at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Frames <= 0:
		return errors.New("frames must be positive")
	case c.BlocksPerFrame < 0:
		return errors.New("blocks_per_frame must not be negative")
	case c.MaxRunLength <= 0 || c.MaxRunLength > 1024:
		return errors.New("max_run_length must be in 1..1024")
	case c.FreeEvery < 0 || c.ClearEvery < 0:
		return errors.New("free_every and clear_every must not be negative")
	case c.MaxRows < 0:
		return errors.New("max_rows must not be negative")
	case c.Scale <= 0:
		return errors.New("scale must be positive")
	}
	return nil
}
