package config

import (
	"fmt"

	"go-simpler.org/env"
)

// parseEnv overlays cfg with the INVOICEDESK_* variables that are set.
// Unset variables leave the current values alone.
func parseEnv(cfg *Config) error {
	if err := env.Load(cfg, nil); err != nil {
		return fmt.Errorf("load environment variables: %w", err)
	}
	return nil
}
