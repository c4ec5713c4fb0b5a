// Package config holds the settings of the funcptr command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Format selects how the report is written.
type Format string

const (
	FormatText    Format = "text"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// DefaultPath is read when no config file is given explicitly.
const DefaultPath = ".funcptr.yaml"

type Config struct {
	// Name of the function to analyze. Empty selects the last function
	// defined in the loaded packages.
	Entry string `yaml:"entry"`

	// Functions whose direct calls are recorded but not analyzed.
	Allocators []string `yaml:"allocators"`

	MaxCallDepth     int `yaml:"max_call_depth"`
	MaxSummaryRounds int `yaml:"max_summary_rounds"`

	Format Format `yaml:"format"`
	Debug  bool   `yaml:"debug"`

	// Also print the call graph built from the resolved calls.
	CallGraph bool `yaml:"callgraph"`
	// Also print the values live at the block boundaries of the entry
	// function.
	Liveness bool `yaml:"liveness"`
}

func DefaultConfig() *Config {
	return &Config{
		Entry:            "main",
		Allocators:       []string{"malloc"},
		MaxCallDepth:     64,
		MaxSummaryRounds: 8,
		Format:           FormatText,
	}
}

// Load reads the YAML file at path over the defaults. An empty path reads
// DefaultPath if it exists.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatYAML, FormatMsgpack:
	default:
		return fmt.Errorf("unknown format %q (use text, yaml or msgpack)", c.Format)
	}
	if c.MaxCallDepth <= 0 {
		return fmt.Errorf("max_call_depth must be positive")
	}
	if c.MaxSummaryRounds <= 0 {
		return fmt.Errorf("max_summary_rounds must be positive")
	}
	return nil
}
