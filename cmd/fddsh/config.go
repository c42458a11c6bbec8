package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds fddsh's persistent preferences, loaded from a JSONC file so
// comments are allowed.
type Config struct {
	HistoryFile  string `json:"history_file,omitempty"`  //nolint:tagliatelle // snake_case for config file
	DefaultSplit string `json:"default_split,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// DefaultConfig returns fddsh's built-in defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()

	return Config{
		HistoryFile:  filepath.Join(home, ".fddsh_history"),
		DefaultSplit: "all_rows",
	}
}

// configPath returns $XDG_CONFIG_HOME/fddsh/config.json, or
// ~/.config/fddsh/config.json when XDG_CONFIG_HOME is unset.
func configPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fddsh", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "fddsh", "config.json")
}

// LoadConfig reads the user's fddsh config file, if any, overlaying it on
// DefaultConfig. A missing file is not an error.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path := configPath()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-controlled config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var fileCfg Config
	if err := json.Unmarshal(standardized, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	if fileCfg.HistoryFile != "" {
		cfg.HistoryFile = fileCfg.HistoryFile
	}

	if fileCfg.DefaultSplit != "" {
		cfg.DefaultSplit = fileCfg.DefaultSplit
	}

	return cfg, nil
}
