package config

import (
	"flag"
	"os"
	"time"

	"github.com/mkraev/venuetrace/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    base URL of the exposure backend
//	-f string    path to the sqlite database file
//	-s int       feed sync interval (minutes)
//	-report      run a one-shot report instead of the agent loop
//	-code string one-time verification code for -report
//
// os.Args is filtered through flagx.FilterArgs so flags owned by other
// components (like -c/-config) do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-s", "-report", "-code"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BackendBaseURL, "a", cfg.BackendBaseURL, "base URL of the exposure backend")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "path to the sqlite database file")
	syncMinutes := fs.Int("s", int(cfg.SyncInterval.Minutes()), "feed sync interval (in minutes)")
	fs.BoolVar(&cfg.ReportMode, "report", cfg.ReportMode, "run a one-shot report and exit")
	fs.StringVar(&cfg.ReportCode, "code", cfg.ReportCode, "one-time verification code for -report")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncMinutes) * time.Minute
}
