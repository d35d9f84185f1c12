package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and returns a fully prepared configuration:
// ${VAR} environment references expanded, defaults filled in, and the result
// validated.
func Load(path string) (*WatcherConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse prepares a configuration from raw YAML bytes. Split out from Load so
// embedders that carry config outside the filesystem can reuse it.
func Parse(data []byte) (*WatcherConfig, error) {
	var cfg WatcherConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
