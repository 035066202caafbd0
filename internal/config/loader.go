package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultCredentialsFile is the default credentials file name.
const DefaultCredentialsFile = "credentials.yaml"

// Environment variables that override the credentials file.
const (
	EnvClientID     = "REDDIT_CLIENT_ID"
	EnvClientSecret = "REDDIT_CLIENT_SECRET"
	EnvUserAgent    = "REDDIT_USER_AGENT"
)

// ErrCredentialsNotFound is returned when the credentials file does not exist.
var ErrCredentialsNotFound = errors.New("credentials file not found")

// File represents the structure of the credentials file.
type File struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserAgent    string `yaml:"user_agent"`

	// Proxy is an optional SOCKS5 proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// APIURL and TokenURL point the client at a mirror or a test server.
	APIURL   string `yaml:"api_url,omitempty"`
	TokenURL string `yaml:"token_url,omitempty"`
}

// LoadCredentialsFile loads credentials from a YAML file.
// If the file does not exist, it returns ErrCredentialsNotFound.
func LoadCredentialsFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided credentials path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, path)
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// FindCredentialsFile searches for the credentials file in the following order:
// 1. If explicitPath is specified, use it directly (it must exist)
// 2. Look for credentials.yaml in the current directory
// 3. Look for credentials.yaml in the XDG config directory
//
// It returns an empty path and no error if nothing was found in the
// default locations.
func FindCredentialsFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: %s", ErrCredentialsNotFound, explicitPath)
		}
		return explicitPath, nil
	}

	candidates := []string{DefaultCredentialsFile}
	if cwd, err := os.Getwd(); err == nil {
		candidates[0] = filepath.Join(cwd, DefaultCredentialsFile)
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), DefaultCredentialsFile))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// ApplyFile copies the values of a credentials file into the config.
// Empty file values leave the config untouched.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	setIfPresent(&c.ClientID, f.ClientID)
	setIfPresent(&c.ClientSecret, f.ClientSecret)
	setIfPresent(&c.UserAgent, f.UserAgent)
	setIfPresent(&c.ProxyAddress, f.Proxy)
	setIfPresent(&c.APIURL, f.APIURL)
	setIfPresent(&c.TokenURL, f.TokenURL)
}

// ApplyEnv overrides credentials with environment variables.
// getenv is usually os.Getenv; tests pass a map lookup.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setIfPresent(&c.ClientID, getenv(EnvClientID))
	setIfPresent(&c.ClientSecret, getenv(EnvClientSecret))
	setIfPresent(&c.UserAgent, getenv(EnvUserAgent))
}

// LoadCredentials finds and applies the credentials file, then the
// environment. A missing file is only an error when explicitly requested;
// the credentials may come from the environment alone.
func (c *Config) LoadCredentials(getenv func(string) string) error {
	path, err := FindCredentialsFile(c.CredentialsPath)
	if err != nil {
		return err
	}
	if path != "" {
		f, err := LoadCredentialsFile(path)
		if err != nil {
			return err
		}
		c.ApplyFile(f)
	}
	c.ApplyEnv(getenv)
	return nil
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
