// Package config handles the optional snapbak configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds user defaults for the CLI. Flags always win over config
// values; the engine itself never reads configuration.
type Config struct {
	// Root is the default backup root used when a command does not name one.
	Root string `toml:"root"`
	// Verbosity is the default log verbosity (0 warn, 1 info, 2 debug).
	Verbosity int `toml:"verbosity"`
	// NoColor disables ANSI coloring of log output.
	NoColor bool `toml:"no_color"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{Root: "."}
}

// DefaultPath returns the platform config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, "snapbak", "config.toml"), nil
}

// Read decodes a Config from the provided reader.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file is not an error:
// the built-in defaults are returned.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Init writes cfg to path, creating parent directories. It refuses to
// overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
