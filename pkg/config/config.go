// Package config loads harness and app-server configuration. scalar values
// come from INI files merged over embedded defaults, scenario overrides come
// from a YAML manifest next to the test suite.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed defaults
var defaultsFS embed.FS

// Config is the merged configuration.
type Config struct {
	Values Values
	Dir    string // global config directory
}

// Load reads configuration with the fallback chain local -> global ->
// embedded defaults. configDir overrides the global config location, empty
// uses ~/.config/uiprobe. the local override is ./.uiprobe/config when
// present.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		configDir = filepath.Join(home, ".config", "uiprobe")
	}

	if err := installDefaults(configDir); err != nil {
		return nil, err
	}

	globalPath := filepath.Join(configDir, "config")
	localPath := filepath.Join(".uiprobe", "config")

	loader := newValuesLoader(defaultsFS)
	values, err := loader.Load(localPath, globalPath)
	if err != nil {
		return nil, err
	}

	return &Config{Values: values, Dir: configDir}, nil
}

// installDefaults creates the config directory and installs the default
// config file on first run. never overwrites an existing file.
func installDefaults(configDir string) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config")
	_, statErr := os.Stat(configPath)
	if statErr != nil && !os.IsNotExist(statErr) {
		return fmt.Errorf("check config file: %w", statErr)
	}
	if os.IsNotExist(statErr) {
		data, err := defaultsFS.ReadFile("defaults/config")
		if err != nil {
			return fmt.Errorf("read embedded config: %w", err)
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
	}
	return nil
}
