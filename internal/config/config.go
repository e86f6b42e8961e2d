package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for lmsync.
type Config struct {
	UserID   string         `toml:"user_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Packages PackagesConfig `toml:"packages"`
}

// APIConfig describes the remote LMS API.
type APIConfig struct {
	BaseURL        string          `toml:"base_url"`
	TimeoutSeconds int             `toml:"timeout_seconds"` // per-request; 0 disables
	Endpoints      EndpointsConfig `toml:"endpoints"`
}

// EndpointsConfig holds the base paths of each entity collection, relative
// to the API base URL.
type EndpointsConfig struct {
	Courses     string `toml:"courses"`
	Lessons     string `toml:"lessons"`
	Enrollments string `toml:"enrollments"`
	Progress    string `toml:"progress"`
}

// DatabaseConfig configures the local entity store. This uses a tagged
// union pattern - the Type field determines which other fields are
// relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// PackagesConfig configures the binary package file area.
type PackagesConfig struct {
	Dir string `toml:"dir"`
}

// NewConfig creates a Config with default paths under baseDir.
func NewConfig(userID, baseDir string) *Config {
	return &Config{
		UserID:  userID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		API: APIConfig{
			TimeoutSeconds: 30,
			Endpoints: EndpointsConfig{
				Courses:     "/courses",
				Lessons:     "/lessons",
				Enrollments: "/enrollments",
				Progress:    "/progress",
			},
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Packages: PackagesConfig{
			Dir: filepath.Join(baseDir, "packages"),
		},
	}
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

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Init initializes a new config file at the specified path. An existing
// file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
