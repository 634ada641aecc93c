package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen      = "127.0.0.1:8080"
	DefaultTimezone    = "Asia/Seoul"
	DefaultRefreshCron = "*/15 * * * *"
	DefaultStatePath   = "/var/lib/notioncal/state.db"
	DefaultNotionURL   = "https://api.notion.com/v1"
	DefaultNotionVer   = "2022-06-28"
	DefaultTimeout     = "15s"
)

// NotionConfig tunes the Notion API client.
type NotionConfig struct {
	// BaseURL allows pointing at a proxy instead of api.notion.com.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Version is sent as the Notion-Version header.
	Version string `yaml:"version" json:"version"`
	// Timeout is a Go duration string applied per HTTP request.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LogConfig selects log level ("debug", "info", "error") and format
// ("console" or "json").
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig describes the headless-browser snapshot of /calendar.
type CaptureConfig struct {
	// URL defaults to the calendar page on the local listen address.
	URL    string `yaml:"url" json:"url"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that decides which calendar date is "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for the periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// StatePath is the bbolt file holding sources, credential and view state.
	StatePath string `yaml:"state_path" json:"state_path"`

	Notion  NotionConfig  `yaml:"notion" json:"notion"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Credential is only ever set from the environment and seeds the stored
	// state when it has none. It is never written back to the file.
	Credential string `yaml:"-" json:"-"`
}

// envOverrides are the variables that win over the file.
type envOverrides struct {
	Listen     string `env:"NOTIONCAL_LISTEN"`
	StatePath  string `env:"NOTIONCAL_STATE_PATH"`
	LogLevel   string `env:"NOTIONCAL_LOG_LEVEL"`
	Credential string `env:"NOTIONCAL_CREDENTIAL"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		Timezone:    DefaultTimezone,
		RefreshCron: DefaultRefreshCron,
		StatePath:   DefaultStatePath,
		Notion: NotionConfig{
			BaseURL: DefaultNotionURL,
			Version: DefaultNotionVer,
			Timeout: DefaultTimeout,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Capture: CaptureConfig{
			Output: "calendar.png",
			Width:  1200,
			Height: 825,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = DefaultNotionURL
	}
	if c.Notion.Version == "" {
		c.Notion.Version = DefaultNotionVer
	}
	if d, err := time.ParseDuration(c.Notion.Timeout); err != nil || d <= 0 {
		c.Notion.Timeout = DefaultTimeout
	}
	switch c.Log.Level {
	case "debug", "info", "error":
	default:
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		c.Log.Format = "console"
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "calendar.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1200
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 825
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// NotionTimeout is the parsed per-request timeout.
func (c *Config) NotionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Notion.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// Location loads the configured timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// CaptureURL is the page the snapshot command loads.
func (c *Config) CaptureURL() string {
	if c.Capture.URL != "" {
		return c.Capture.URL
	}
	return "http://" + c.Listen + "/calendar"
}

// ApplyEnv overlays NOTIONCAL_* environment variables.
func (c *Config) ApplyEnv() error {
	var v envOverrides
	if err := env.Parse(&v); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if v.Listen != "" {
		c.Listen = v.Listen
	}
	if v.StatePath != "" {
		c.StatePath = v.StatePath
	}
	if v.LogLevel != "" {
		c.Log.Level = v.LogLevel
	}
	c.Credential = v.Credential
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
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
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) when needed.
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

	tmp, err := os.CreateTemp(dir, ".notioncal-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
