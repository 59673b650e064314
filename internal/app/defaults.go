package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the locations pfs uses before a config file exists.
type Paths struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	WorkingDir string
}

// DefaultPaths resolves Paths from the environment. Lookup order:
//
//	config: PFS_CONFIG_PATH, $XDG_CONFIG_HOME/pfs.toml, ~/.config/pfs.toml
//	data:   PFS_HOME, $XDG_DATA_HOME/pfs, ~/.local/share/pfs
func DefaultPaths() (Paths, error) {
	configPath, err := resolve("PFS_CONFIG_PATH", "XDG_CONFIG_HOME", "pfs.toml", ".config")
	if err != nil {
		return Paths{}, err
	}
	baseDir, err := resolve("PFS_HOME", "XDG_DATA_HOME", "pfs", ".local", "share")
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		WorkingDir: filepath.Join(baseDir, "fs"),
	}, nil
}

// resolve returns the explicit override when set, name under the XDG
// directory when that is set, and name under the home fallback otherwise.
func resolve(override, xdgVar, name string, homeFallback ...string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, name), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	parts := append([]string{home}, homeFallback...)
	return filepath.Join(append(parts, name)...), nil
}
