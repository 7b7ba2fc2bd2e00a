package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a client YAML file. See Parse.
func Load(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a client config document after expanding ${VAR}
// references. Unknown keys are rejected so that a misspelt setting such
// as keepalive.timout fails loudly instead of quietly using the default.
// An empty document yields the zero config.
func Parse(data []byte) (*ClientConfig, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg ClientConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads the file and fills every unset field: server
// address, retry and keepalive timings, chunk and batch sizes, and the
// starting viewport.
func LoadWithDefaults(path string) (*ClientConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate is what the CLI calls. With no path the client runs on
// Default(); otherwise the file is loaded, defaulted and validated.
func LoadAndValidate(path string) (*ClientConfig, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns the config used when no file is given: localhost:9062,
// viewport centred on the grid.
func Default() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults()
	return cfg
}
