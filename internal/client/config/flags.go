package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const (
	FlagConfig         = "config"
	FlagAPIURL         = "api-url"
	FlagRequestTimeout = "request-timeout"
	FlagRefreshTimeout = "refresh-timeout"
	FlagSessionStore   = "session-store"
	FlagDBPath         = "db-path"
	FlagKeyringService = "keyring-service"
	FlagPerPage        = "per-page"
	FlagLogLevel       = "log-level"
	FlagLogFormat      = "log-format"
)

// RegisterFlags defines the configuration flags on fs. The defaults shown
// in help are the built-in ones; the value actually used is resolved by
// Load.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.StringP(FlagConfig, "c", "", "path to a JSON config file")
	fs.StringP(FlagAPIURL, "a", d.APIBaseURL, "base URL of the invoice service API")
	fs.Duration(FlagRequestTimeout, d.RequestTimeout, "timeout of a single API request, replay included")
	fs.Duration(FlagRefreshTimeout, d.RefreshTimeout, "timeout of a session refresh")
	fs.String(FlagSessionStore, d.SessionStore, "where to keep the session: sqlite or keyring")
	fs.String(FlagDBPath, d.DBPath, "SQLite database path for the sqlite session store")
	fs.String(FlagKeyringService, d.KeyringService, "service name for the keyring session store")
	fs.Int(FlagPerPage, d.PerPage, "invoices per page")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.LogFormat, "log format: text or json")
}

func configPath(fs *pflag.FlagSet) string {
	if fs != nil {
		if f := fs.Lookup(FlagConfig); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return os.Getenv("INVOICEDESK_CONFIG")
}

// applyFlags copies every flag that was set on the command line into cfg.
func applyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagAPIURL:
			cfg.APIBaseURL, err = fs.GetString(f.Name)
		case FlagRequestTimeout:
			cfg.RequestTimeout, err = fs.GetDuration(f.Name)
		case FlagRefreshTimeout:
			cfg.RefreshTimeout, err = fs.GetDuration(f.Name)
		case FlagSessionStore:
			cfg.SessionStore, err = fs.GetString(f.Name)
		case FlagDBPath:
			cfg.DBPath, err = fs.GetString(f.Name)
		case FlagKeyringService:
			cfg.KeyringService, err = fs.GetString(f.Name)
		case FlagPerPage:
			cfg.PerPage, err = fs.GetInt(f.Name)
		case FlagLogLevel:
			cfg.LogLevel, err = fs.GetString(f.Name)
		case FlagLogFormat:
			cfg.LogFormat, err = fs.GetString(f.Name)
		}
		if err != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, err)
		}
	})
	return err
}
