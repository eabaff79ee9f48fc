package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/state"
)

// loadConfigFromCmd loads rrbot.yaml. A missing file is tolerated only for the implicit default
// path, in which case RRBOT_* variables alone configure the run. When the log flags were not
// given, the logger is rebuilt from the config's log section.
func loadConfigFromCmd(opts *Options, cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath, config.LoadOptions{Optional: !opts.configExplicit})
	if err != nil {
		return nil, nil, err
	}

	logger := LoggerFromContext(cmd.Context())
	if !cmd.Flags().Changed("log-level") || !cmd.Flags().Changed("log-format") {
		level, format := opts.LogLevel, opts.LogFormat
		if !cmd.Flags().Changed("log-level") && cfg.Log.Level != "" {
			level = cfg.Log.Level
		}
		if !cmd.Flags().Changed("log-format") && cfg.Log.Format != "" {
			format = cfg.Log.Format
		}
		logger = newLogger(opts, level, format)
		cmd.SetContext(withLogger(cmd.Context(), logger))
	}
	return cfg, logger, nil
}

// openStoreFromCmd loads the config and opens the configured ledger store.
func openStoreFromCmd(opts *Options, cmd *cobra.Command) (*config.Config, state.Store, *slog.Logger, error) {
	cfg, logger, err := loadConfigFromCmd(opts, cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := state.Open(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, logger, nil
}
