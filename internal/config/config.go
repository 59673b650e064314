package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for pfs.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	WorkingDir string           `toml:"working_dir"` // per-project clones live in WorkingDir/<project>
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
	Transport  TransportConfig  `toml:"transport"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig represents configuration for the store database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// LogConfig controls the operation log file.
type LogConfig struct {
	Level      string `toml:"level"`        // "debug", "info", "warn" or "error"
	MaxSizeMB  int    `toml:"max_size_mb"`  // rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"`  // rotated files to keep
	MaxAgeDays int    `toml:"max_age_days"` // 0 keeps rotated files forever
}

// TransportConfig holds settings shared by every project of a transport type.
// Per-project settings (fs_type, fs_url) live in the database.
type TransportConfig struct {
	S3 S3Config `toml:"s3"`
}

// S3Config configures the s3 transport.
type S3Config struct {
	Region       string `toml:"region,omitempty"`
	Endpoint     string `toml:"endpoint,omitempty"` // custom endpoint for S3-compatible stores
	UsePathStyle bool   `toml:"use_path_style"`
	Encrypt      bool   `toml:"encrypt"` // age-encrypt objects with the configured key pair

	// Static credentials; when empty the default AWS credential chain is used.
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used by encrypted transports.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a Config rooted at baseDir with default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		WorkingDir: filepath.Join(baseDir, "fs"),
		Database:   DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Log:        LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "pfs.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "pfs.key"),
		},
	}
}

// ProjectDir returns the working clone directory of a project.
func (c *Config) ProjectDir(projectCode string) string {
	return filepath.Join(c.WorkingDir, projectCode)
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir is required")
	}
	if c.WorkingDir == "" {
		return fmt.Errorf("working_dir is required")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is an error.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
