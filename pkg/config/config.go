// Package config loads the optional statusd config file. Values from the
// file sit below command-line flags: serve applies the file first, then any
// flag the user set explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"statusd/pkg/protocol"
)

// File is the ~/.statusd/config.toml structure.
type File struct {
	// Workers is the tag-resolution pool size. 0 selects the daemon default.
	Workers int `toml:"workers"`

	// MaxIndexSize is the index entry count above which the staged/untracked
	// working-tree scans degrade to "unknown". Negative means no limit.
	MaxIndexSize int64 `toml:"max_index_size"`

	// CacheCapacity bounds the repository handle cache. 0 selects the
	// daemon default.
	CacheCapacity int `toml:"cache_capacity"`

	// DBPath overrides the event log database location.
	DBPath string `toml:"db_path"`
}

// Default returns the zero configuration with MaxIndexSize unlimited.
func Default() File {
	return File{MaxIndexSize: -1}
}

// Load reads path. A missing file is not an error: the defaults are
// returned so a config file stays optional.
func Load(path string) (File, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns ~/.statusd/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.StatusdDir, "config.toml"), nil
}
