// Package config loads runtime configuration for the venuetrace agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "2h" or integer nanoseconds:
//
//	{
//	  "backend_base_url": "https://backend.example.org",
//	  "database_path": "/var/lib/venuetrace/agent.db",
//	  "sync_interval": "2h",
//	  "decoy_check_interval": "1h",
//	  "max_checkin_duration": "12h",
//	  "retention_days": 14,
//	  "decoy_mean_interval": "120h"
//	}
//
// Note: This package does not read environment variables; use the JSON file
// or flags to configure values.
package config
