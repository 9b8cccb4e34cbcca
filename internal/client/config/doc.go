// Package config loads runtime configuration for the invoicedesk CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see Default).
//  2. Optional JSON file selected with -c/--config or INVOICEDESK_CONFIG.
//  3. Environment variables (INVOICEDESK_*).
//  4. Command-line flags registered with RegisterFlags, which override
//     everything else when given explicitly.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "10s" or
// integer nanoseconds:
//
//	{
//	  "api_url": "http://127.0.0.1:8000/api",
//	  "request_timeout": "30s",
//	  "refresh_timeout": "10s",
//	  "session_store": "sqlite",
//	  "db_path": "invoicedesk.db",
//	  "keyring_service": "invoicedesk",
//	  "per_page": 10,
//	  "log_level": "info",
//	  "log_format": "text"
//	}
package config
