package config

import "time"

// Config holds runtime settings for the venuetrace agent.
//
// Durations are time.Duration values; RetentionDays counts calendar days.
type Config struct {
	// BackendBaseURL is the base URL of the exposure backend.
	BackendBaseURL string

	// DatabasePath is the sqlite file the agent persists into.
	DatabasePath string

	// SyncInterval is how often the feed sync runs.
	SyncInterval time.Duration

	// DecoyCheckInterval is how often the decoy schedule is inspected.
	DecoyCheckInterval time.Duration

	// MaxCheckInDuration bounds a check-in before auto-checkout closes it.
	MaxCheckInDuration time.Duration

	// RetentionDays bounds how long diary records and events are kept.
	RetentionDays int

	// DecoyMeanInterval is the mean spacing between decoy reports.
	DecoyMeanInterval time.Duration

	// ReportCode, when set, runs a one-shot report for this code and exits.
	// Empty means interactive prompt in report mode.
	ReportCode string

	// ReportMode selects the one-shot reporting run instead of the agent loop.
	ReportMode bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendBaseURL = "https://localhost:8443"
	c.DatabasePath = "venuetrace.db"
	c.SyncInterval = 2 * time.Hour
	c.DecoyCheckInterval = time.Hour
	c.MaxCheckInDuration = 12 * time.Hour
	c.RetentionDays = 14
	c.DecoyMeanInterval = 5 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
