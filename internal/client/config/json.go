package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/invoicedesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Only the
// fields present in the file override the current values.
type JsonConfig struct {
	APIBaseURL     *string         `json:"api_url"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	RefreshTimeout *timex.Duration `json:"refresh_timeout"`
	SessionStore   *string         `json:"session_store"`
	DBPath         *string         `json:"db_path"`
	KeyringService *string         `json:"keyring_service"`
	PerPage        *int            `json:"per_page"`
	LogLevel       *string         `json:"log_level"`
	LogFormat      *string         `json:"log_format"`
}

// parseJSON overlays cfg with the values found in the JSON file at path.
func parseJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}

	setIf(&cfg.APIBaseURL, jc.APIBaseURL)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RefreshTimeout != nil {
		cfg.RefreshTimeout = jc.RefreshTimeout.Duration
	}
	setIf(&cfg.SessionStore, jc.SessionStore)
	setIf(&cfg.DBPath, jc.DBPath)
	setIf(&cfg.KeyringService, jc.KeyringService)
	setIf(&cfg.PerPage, jc.PerPage)
	setIf(&cfg.LogLevel, jc.LogLevel)
	setIf(&cfg.LogFormat, jc.LogFormat)
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
