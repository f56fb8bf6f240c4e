package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Client defaults.
const (
	DefaultClientServerURL = "http://localhost:8080"
	DefaultClientListID    = "default"
	DefaultClientTimeout   = 10 * time.Second
	DefaultClientLogLevel  = "warn"
)

// Client environment variable names. They override the config file.
const (
	EnvClientServerURL = "TASKLIST_SERVER_URL"
	EnvClientListID    = "TASKLIST_LIST_ID"
	EnvClientAPIKey    = "TASKLIST_API_KEY" //nolint:gosec // env var name, not a credential
	EnvClientUsername  = "TASKLIST_USERNAME"
	EnvClientPassword  = "TASKLIST_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvClientTimeout   = "TASKLIST_TIMEOUT"
	EnvClientLogLevel  = "TASKLIST_LOG_LEVEL"
)

// Client validation errors.
var (
	ErrInvalidServerURL     = errors.New("server URL must be an absolute http or https URL")
	ErrEmptyListID          = errors.New("list ID must not be empty")
	ErrInvalidClientTimeout = errors.New("timeout must be positive")
	ErrConflictingAuth      = errors.New("set either an API key or a username, not both")
	ErrIncompleteBasicAuth  = errors.New("username and password must be set together")
	ErrUnknownConfigKeys    = errors.New("unknown config keys")
)

// ClientConfig configures the tasklist CLI and TUI.
type ClientConfig struct {
	ServerURL string        `toml:"server_url"`
	ListID    string        `toml:"list_id"`
	APIKey    string        `toml:"api_key"`
	Username  string        `toml:"username"`
	Password  string        `toml:"password"`
	Timeout   time.Duration `toml:"timeout"`
	LogLevel  string        `toml:"log_level"`
}

// DefaultClientConfigPath returns $XDG_CONFIG_HOME/tasklist/config.toml or
// the platform equivalent.
func DefaultClientConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tasklist", "config.toml")
}

// LoadClient builds a client configuration from defaults, the TOML file at
// path and TASKLIST_* environment variables, in increasing priority. An
// empty path or a missing file is skipped. The result is not validated so
// callers can apply flags first.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		ServerURL: DefaultClientServerURL,
		ListID:    DefaultClientListID,
		Timeout:   DefaultClientTimeout,
		LogLevel:  DefaultClientLogLevel,
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, fmt.Errorf("loading client config from environment: %w", err)
	}

	return cfg, nil
}

func (c *ClientConfig) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("reading %s: %w: %s", path, ErrUnknownConfigKeys, strings.Join(keys, ", "))
	}

	return nil
}

func (c *ClientConfig) loadEnv() error {
	if val := os.Getenv(EnvClientServerURL); val != "" {
		c.ServerURL = val
	}

	if val := os.Getenv(EnvClientListID); val != "" {
		c.ListID = val
	}

	if val := os.Getenv(EnvClientAPIKey); val != "" {
		c.APIKey = val
	}

	if val := os.Getenv(EnvClientUsername); val != "" {
		c.Username = val
	}

	if val := os.Getenv(EnvClientPassword); val != "" {
		c.Password = val
	}

	if val := os.Getenv(EnvClientTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvClientTimeout, err)
		}
		c.Timeout = timeout
	}

	if val := os.Getenv(EnvClientLogLevel); val != "" {
		c.LogLevel = val
	}

	return nil
}

// Validate checks if the client configuration values are valid.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServerURL
	}

	if strings.TrimSpace(c.ListID) == "" {
		return ErrEmptyListID
	}

	if c.Timeout <= 0 {
		return ErrInvalidClientTimeout
	}

	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.APIKey != "" && c.Username != "" {
		return ErrConflictingAuth
	}

	if (c.Username == "") != (c.Password == "") {
		return ErrIncompleteBasicAuth
	}

	return nil
}
