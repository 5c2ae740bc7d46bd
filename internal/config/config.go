// Package config loads Kate's optional TOML configuration file, mirroring
// the teacher's internal/pkg/config.go shape: a struct with toml tags, a
// LoadConfig function, and nothing more — config supplies defaults that
// explicit CLI flags are free to override.
package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is Kate's on-disk configuration, conventionally named kate.toml.
type Config struct {
	Classpath  []string `toml:"classpath"`
	BootSystem string   `toml:"boot_system"`
	LogLevel   string   `toml:"log_level"`
}

// Default returns the configuration used when no kate.toml is present.
func Default() *Config {
	return &Config{
		Classpath: []string{"."},
		LogLevel:  "info",
	}
}

// LoadConfig reads and parses a kate.toml at path. A missing file is not an
// error; it yields Default().
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes c back out as TOML, for symmetry with the teacher's
// PackageConfig.Save — Kate itself never calls this at runtime, but it keeps
// the config round-trippable for tooling built on top of the package.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
