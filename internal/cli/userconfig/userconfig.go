package userconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "roleportal"
	configFileName = "config.yaml"

	// EnvAPIURL overrides the configured API URL
	EnvAPIURL = "ROLEPORTAL_API_URL"

	// DefaultAPIURL is used when nothing else is configured
	DefaultAPIURL = "http://localhost:8080"
)

// UserConfig represents the user's local configuration stored in ~/.config/roleportal/config.yaml
type UserConfig struct {
	APIURL string `yaml:"api_url"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		// If config doesn't exist, return empty config
		if errors.Is(err, os.ErrNotExist) {
			return &UserConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetAPIURL validates and stores the API URL
func SetAPIURL(apiURL string) error {
	normalized, err := NormalizeAPIURL(apiURL)
	if err != nil {
		return err
	}

	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.APIURL = normalized
	return Save(cfg)
}

// ResolveAPIURL picks the API URL: flag, then environment, then the config
// file, then the default
func ResolveAPIURL(flag string) (string, error) {
	if flag != "" {
		return NormalizeAPIURL(flag)
	}
	if env := os.Getenv(EnvAPIURL); env != "" {
		return NormalizeAPIURL(env)
	}

	cfg, err := Load()
	if err != nil {
		return "", err
	}
	if cfg.APIURL != "" {
		return NormalizeAPIURL(cfg.APIURL)
	}

	return DefaultAPIURL, nil
}

// NormalizeAPIURL checks that apiURL is an absolute http(s) URL and strips
// trailing slashes
func NormalizeAPIURL(apiURL string) (string, error) {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")

	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid API URL %q: must be an http or https URL", apiURL)
	}

	return apiURL, nil
}

// Host returns the host[:port] of an API URL, used to scope stored sessions
func Host(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return apiURL
	}
	return u.Host
}
