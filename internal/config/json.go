package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkraev/venuetrace/internal/flagx"
	"github.com/mkraev/venuetrace/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so intervals can be either strings like "2h" or integer
// nanoseconds. After parsing, values are copied into the runtime Config.
type JsonConfig struct {
	BackendBaseURL     string         `json:"backend_base_url"`
	DatabasePath       string         `json:"database_path"`
	SyncInterval       timex.Duration `json:"sync_interval"`
	DecoyCheckInterval timex.Duration `json:"decoy_check_interval"`
	MaxCheckInDuration timex.Duration `json:"max_checkin_duration"`
	RetentionDays      int            `json:"retention_days"`
	DecoyMeanInterval  timex.Duration `json:"decoy_mean_interval"`
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c or -config flag; without one no JSON is loaded. Keys
// missing from the file keep their current values. Read or unmarshal errors
// panic, the caller cannot run with a half-applied config.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BackendBaseURL != "" {
		cfg.BackendBaseURL = jc.BackendBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.DecoyCheckInterval.Duration != 0 {
		cfg.DecoyCheckInterval = time.Duration(jc.DecoyCheckInterval.Duration)
	}
	if jc.MaxCheckInDuration.Duration != 0 {
		cfg.MaxCheckInDuration = time.Duration(jc.MaxCheckInDuration.Duration)
	}
	if jc.RetentionDays != 0 {
		cfg.RetentionDays = jc.RetentionDays
	}
	if jc.DecoyMeanInterval.Duration != 0 {
		cfg.DecoyMeanInterval = time.Duration(jc.DecoyMeanInterval.Duration)
	}
}
