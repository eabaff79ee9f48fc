// Package cli defines the command-line interface for rrbot.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// configExplicit is set when the config path came from a flag or RRBOT_CONFIG.
	configExplicit bool
	// logErr receives log output; defaults to os.Stderr.
	logErr io.Writer
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootCmd := newRootCommand(&Options{ConfigPath: config.DefaultPath}, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rrbot",
		Short:         "rrbot answers \"what is the RR?\" on Reddit",
		Long:          "rrbot scans the hot posts of a subreddit and their comment trees, and replies once to every question about the Recommended Routine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var defaults rootEnv
			if err := parseEnv(&defaults); err != nil {
				return err
			}
			if !cmd.Flags().Changed("config") && defaults.ConfigPath != "" {
				opts.ConfigPath = defaults.ConfigPath
			}
			opts.configExplicit = cmd.Flags().Changed("config") || defaults.ConfigPath != ""
			if !cmd.Flags().Changed("log-level") && defaults.LogLevel != "" {
				opts.LogLevel = defaults.LogLevel
			}
			if !cmd.Flags().Changed("log-format") && defaults.LogFormat != "" {
				opts.LogFormat = defaults.LogFormat
			}

			logger = newLogger(opts, opts.LogLevel, opts.LogFormat)
			cmd.SetContext(withLogger(cmd.Context(), logger))
			logger.Debug("logger initialized", "level", opts.LogLevel, "format", opts.LogFormat)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "Path to rrbot.yaml configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(
		newScanCommand(opts),
		newMatchCommand(),
		newLedgerCommand(opts),
		newDoctorCommand(opts),
	)

	return cmd
}

func newLogger(opts *Options, level, format string) *slog.Logger {
	w := opts.logErr
	if w == nil {
		w = os.Stderr
	}
	return logging.NewLoggerWithFormat(w, logging.ParseLevel(level), logging.ParseFormat(format))
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
