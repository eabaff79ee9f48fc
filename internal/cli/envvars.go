package cli

import (
	envparse "github.com/caarlos0/env/v11"
)

// rootEnv defines root CLI defaults sourced from RRBOT_* env vars.
type rootEnv struct {
	// ConfigPath is the rrbot.yaml path from RRBOT_CONFIG.
	ConfigPath string `env:"RRBOT_CONFIG"`
	// LogLevel is the logging level from RRBOT_LOG_LEVEL.
	LogLevel string `env:"RRBOT_LOG_LEVEL"`
	// LogFormat is the log encoding from RRBOT_LOG_FORMAT.
	LogFormat string `env:"RRBOT_LOG_FORMAT"`
}

// scanEnv captures RRBOT_* inputs specific to the scan command.
type scanEnv struct {
	// Report selects the report sink from RRBOT_REPORT.
	Report string `env:"RRBOT_REPORT"`
	// Timeout bounds the whole pass from RRBOT_SCAN_TIMEOUT.
	Timeout string `env:"RRBOT_SCAN_TIMEOUT"`
}

// parseEnv fills target from RRBOT_* env vars via caarlos0/env.
func parseEnv(target any) error {
	return envparse.Parse(target)
}
