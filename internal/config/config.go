package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds connection parameters for the upstream release hosts.
type Config struct {
	// APIHost is the base URL of the release metadata API.
	APIHost string `yaml:"api_host"`
	// ReleasesHost is the base URL where release assets are downloaded from.
	ReleasesHost string `yaml:"releases_host"`
	// Timeout is the per-request timeout at the transport layer.
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is the retry budget for a single network operation.
	MaxAttempts int `yaml:"max_attempts"`
}

const (
	// DefaultConfigFilename is the default filename for connection settings.
	DefaultConfigFilename = "manifest-updater-settings.yaml"

	// DefaultAPIHost is the release metadata endpoint used when no settings file is given.
	DefaultAPIHost = "https://api.github.com"

	// DefaultReleasesHost is the asset download host used when no settings file is given.
	DefaultReleasesHost = "https://github.com"

	// DefaultTimeout is the default duration for a single network request.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxAttempts is the default retry budget for network operations.
	DefaultMaxAttempts = 3

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns a configuration with all fields set to their defaults.
func Default() *Config {
	return &Config{
		APIHost:      DefaultAPIHost,
		ReleasesHost: DefaultReleasesHost,
		Timeout:      DefaultTimeout,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// Load reads configuration from the provided path and validates essential fields.
// An empty path yields the default configuration without touching the filesystem.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for unset fields and checks host URLs for validity.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}

	if cfg.ReleasesHost == "" {
		cfg.ReleasesHost = DefaultReleasesHost
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	if _, err := url.ParseRequestURI(cfg.APIHost); err != nil {
		return fmt.Errorf("invalid API host URI: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.ReleasesHost); err != nil {
		return fmt.Errorf("invalid releases host URI: %w", err)
	}

	return nil
}
