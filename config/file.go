package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "config.yaml"

// LoadFile reads a YAML configuration document into its untyped form. Unlike
// the record store, a missing config file is an error: there is nothing to
// run without queries.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return raw, nil
}

// Load reads and validates the config file at path.
func Load(path string, opts ParseOptions) (*Config, error) {
	raw, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}
