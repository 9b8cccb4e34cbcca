package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	StoreSQLite  = "sqlite"
	StoreKeyring = "keyring"
)

// Config holds runtime settings for the invoicedesk CLI.
type Config struct {
	APIBaseURL     string        `env:"INVOICEDESK_API_URL"`
	RequestTimeout time.Duration `env:"INVOICEDESK_REQUEST_TIMEOUT"`
	RefreshTimeout time.Duration `env:"INVOICEDESK_REFRESH_TIMEOUT"`

	// SessionStore selects where the session snapshot is kept: "sqlite" or
	// "keyring".
	SessionStore   string `env:"INVOICEDESK_SESSION_STORE"`
	DBPath         string `env:"INVOICEDESK_DB_PATH"`
	KeyringService string `env:"INVOICEDESK_KEYRING_SERVICE"`

	PerPage int `env:"INVOICEDESK_PER_PAGE"`

	LogLevel  string `env:"INVOICEDESK_LOG_LEVEL"`
	LogFormat string `env:"INVOICEDESK_LOG_FORMAT"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:     "http://127.0.0.1:8000/api",
		RequestTimeout: 30 * time.Second,
		RefreshTimeout: 10 * time.Second,
		SessionStore:   StoreSQLite,
		DBPath:         "invoicedesk.db",
		KeyringService: "invoicedesk",
		PerPage:        10,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// Load builds a Config from defaults, the JSON file, the environment and
// the flags in fs that were set explicitly. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	path := configPath(fs)
	if path != "" {
		if err := parseJSON(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := applyFlags(fs, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("api url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("api url %q: scheme must be http or https", c.APIBaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("api url %q: host is required", c.APIBaseURL))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.RefreshTimeout <= 0 {
		errs = append(errs, errors.New("refresh timeout must be positive"))
	}

	switch c.SessionStore {
	case StoreSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			errs = append(errs, errors.New("db path is required for the sqlite session store"))
		}
	case StoreKeyring:
		if strings.TrimSpace(c.KeyringService) == "" {
			errs = append(errs, errors.New("keyring service is required for the keyring session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("session store %q: must be %q or %q", c.SessionStore, StoreSQLite, StoreKeyring))
	}

	if c.PerPage < 1 || c.PerPage > 100 {
		errs = append(errs, fmt.Errorf("per page %d: must be between 1 and 100", c.PerPage))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: must be text or json", c.LogFormat))
	}

	return errors.Join(errs...)
}
