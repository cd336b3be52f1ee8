package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"inkplan/internal/layout"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone used for parsing, expansion
	// and layout (e.g. "America/Chicago"). It replaces any ambient
	// process-default timezone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// FetchTimeoutSeconds bounds each feed download.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// DefaultStartHour / DefaultEndHour are used when the form omits the
	// time window. The window must span 8 to 12 hours.
	DefaultStartHour int `yaml:"default_start_hour" json:"default_start_hour"`
	DefaultEndHour   int `yaml:"default_end_hour" json:"default_end_hour"`

	// ShowTodos toggles the default for the to-do section checkbox.
	ShowTodos bool `yaml:"show_todos" json:"show_todos"`

	// TodoLines is the number of checkbox lines in the to-do section.
	TodoLines int `yaml:"todo_lines" json:"todo_lines"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		Timezone:            "America/Chicago",
		FetchTimeoutSeconds: 30,
		DefaultStartHour:    6,
		DefaultEndHour:      17,
		ShowTodos:           true,
		TodoLines:           4,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Chicago"
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 30
	}
	if c.DefaultEndHour <= c.DefaultStartHour {
		c.DefaultStartHour = 6
		c.DefaultEndHour = 17
	}
	span := c.DefaultEndHour - c.DefaultStartHour
	if span < layout.MinWindowHours || span > layout.MaxWindowHours {
		c.DefaultStartHour = 6
		c.DefaultEndHour = 17
	}
	if c.TodoLines <= 0 {
		c.TodoLines = 4
	}
}

// Validate reports configuration that Normalize cannot repair.
func (c *Config) Validate() error {
	if c.DefaultStartHour < 0 || c.DefaultEndHour > 24 {
		return fmt.Errorf("default hours out of range: %d-%d", c.DefaultStartHour, c.DefaultEndHour)
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (0600) and
// returned; this keeps first runs zero-setup.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".inkplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
