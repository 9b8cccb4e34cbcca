package mockapi

import (
	"errors"
	"fmt"
	"time"

	"go-simpler.org/env"
)

// Config controls the mock invoice service.
type Config struct {
	Addr      string `env:"MOCKAPI_ADDR" default:":8000"`
	JWTSecret string `env:"MOCKAPI_JWT_SECRET" default:"invoicedesk-dev-secret"`
	LogLevel  string `env:"MOCKAPI_LOG_LEVEL" default:"info"`
	LogFormat string `env:"MOCKAPI_LOG_FORMAT" default:"text"`

	AccessTTL  time.Duration `env:"MOCKAPI_ACCESS_TTL" default:"1m"`
	RefreshTTL time.Duration `env:"MOCKAPI_REFRESH_TTL" default:"24h"`

	UserName     string `env:"MOCKAPI_USER_NAME" default:"Demo User"`
	UserEmail    string `env:"MOCKAPI_USER_EMAIL" default:"demo@invoicedesk.test"`
	UserPassword string `env:"MOCKAPI_USER_PASSWORD" default:"secret"`

	// SeedInvoices is the number of generated invoices the store starts with.
	SeedInvoices int `env:"MOCKAPI_SEED_INVOICES" default:"23"`
}

// LoadConfig reads the MOCKAPI_* environment variables over their defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("MOCKAPI_JWT_SECRET is required"))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("MOCKAPI_ACCESS_TTL must be > 0"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("MOCKAPI_REFRESH_TTL must be > 0"))
	}
	if c.UserEmail == "" || c.UserPassword == "" {
		errs = append(errs, errors.New("MOCKAPI_USER_EMAIL and MOCKAPI_USER_PASSWORD are required"))
	}
	if c.SeedInvoices < 0 {
		errs = append(errs, errors.New("MOCKAPI_SEED_INVOICES must not be negative"))
	}
	return errors.Join(errs...)
}
