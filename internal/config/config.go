package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"clinicsched/internal/recurrence"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/Sao_Paulo"
	defaultLocale      = "en"
	defaultRefreshCron = "*/15 * * * *"
	defaultHorizonDays = 7
	defaultCacheDir    = "./var/ics-cache"
	defaultLogLevel    = "info"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// AppointmentConfig is a seed appointment defined directly in the config.
type AppointmentConfig struct {
	UID         string `yaml:"uid" json:"uid"`
	Summary     string `yaml:"summary" json:"summary"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Location    string `yaml:"location,omitempty" json:"location,omitempty"`

	// Start / End accept RFC3339 or "2006-01-02 15:04" in the config
	// timezone. Duration ("45m") may replace End.
	Start    string `yaml:"start" json:"start"`
	End      string `yaml:"end,omitempty" json:"end,omitempty"`
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`

	// Repeat is one of none, daily, weekdays, weekly, monthly, yearly.
	// Rule, when set, wins over Repeat.
	Repeat string `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	Rule   string `yaml:"rule,omitempty" json:"rule,omitempty"`
}

// GoogleConfig controls the Google Calendar push.
type GoogleConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	CalendarID      string `yaml:"calendar_id" json:"calendar_id"`
	CredentialsPath string `yaml:"credentials_path" json:"credentials_path"`
	TokenPath       string `yaml:"token_path" json:"token_path"`
}

// CaptureConfig controls the agenda PNG snapshot.
type CaptureConfig struct {
	Width      int    `yaml:"width" json:"width"`
	Height     int    `yaml:"height" json:"height"`
	OutputPath string `yaml:"output_path" json:"output_path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as canonical display zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale selects the language of recurrence descriptions ("en", "pt-BR").
	Locale string `yaml:"locale" json:"locale"`

	// WeekStart only affects agenda layout ("monday" or "sunday"); weekly
	// recurrence always uses Monday-anchored weeks.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// driving the refresh pipeline.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of future days the agenda and sync cover.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// MaxIterations bounds each recurrence walk. Zero uses the engine default.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// CacheDir stores the ICS HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	ICS          []ICSConfig         `yaml:"ics" json:"ics"`
	Appointments []AppointmentConfig `yaml:"appointments" json:"appointments"`

	Google  GoogleConfig  `yaml:"google" json:"google"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.MaxIterations < 0 {
		c.MaxIterations = 0
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Appointments == nil {
		c.Appointments = []AppointmentConfig{}
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.Google.CredentialsPath == "" {
		c.Google.CredentialsPath = "credentials.json"
	}
	if c.Google.TokenPath == "" {
		c.Google.TokenPath = "token.json"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 960
	}
	if c.Capture.OutputPath == "" {
		c.Capture.OutputPath = "./var/agenda.png"
	}
}

// Describer returns the recurrence locale configured for descriptions.
func (c *Config) Describer() recurrence.Locale {
	return recurrence.LookupLocale(c.Locale)
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
				// Even if save fails, return cfg with error so caller can decide.
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

	return &cfg, nil
}

// Save writes the given configuration to the specified path through a temp
// file + rename, leaving the final file with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".clinicsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
