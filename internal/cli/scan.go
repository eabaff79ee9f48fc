package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/rrbot/internal/config"
	"github.com/codex-k8s/rrbot/internal/ghoutput"
	"github.com/codex-k8s/rrbot/internal/logging"
	"github.com/codex-k8s/rrbot/internal/matcher"
	"github.com/codex-k8s/rrbot/internal/metrics"
	"github.com/codex-k8s/rrbot/internal/reddit"
	"github.com/codex-k8s/rrbot/internal/scan"
)

const (
	reportText = "text"
	reportLog  = "log"
	reportNone = "none"
)

// newScanCommand creates the "scan" subcommand that performs exactly one pass.
func newScanCommand(opts *Options) *cobra.Command {
	var (
		monitorOnly bool
		hotTake     int
		reportMode  string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one pass over the hot posts and reply to unanswered RR questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var envCfg scanEnv
			if err := parseEnv(&envCfg); err != nil {
				return err
			}
			if !cmd.Flags().Changed("report") && envCfg.Report != "" {
				reportMode = envCfg.Report
			}
			if !cmd.Flags().Changed("timeout") && envCfg.Timeout != "" {
				d, err := time.ParseDuration(envCfg.Timeout)
				if err != nil {
					return fmt.Errorf("invalid RRBOT_SCAN_TIMEOUT %q: %w", envCfg.Timeout, err)
				}
				timeout = d
			}
			reportMode = strings.ToLower(strings.TrimSpace(reportMode))
			switch reportMode {
			case reportText, reportLog, reportNone:
			default:
				return fmt.Errorf("unsupported report mode %q (text, log, none)", reportMode)
			}

			cfg, store, logger, err := openStoreFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if cmd.Flags().Changed("monitor-only") {
				cfg.Scan.MonitorOnly = monitorOnly
			}
			if cmd.Flags().Changed("hot-take") {
				if hotTake <= 0 {
					return fmt.Errorf("--hot-take must be positive")
				}
				cfg.Scan.HotTake = hotTake
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			client, err := reddit.NewClient(logger, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			m := matcher.New()
			runner := &scan.Runner{
				Store:       store,
				Feed:        client,
				Replier:     client,
				Match:       m.Match,
				Logger:      logger.With("subreddit", cfg.Reddit.Subreddit),
				HotTake:     cfg.Scan.HotTake,
				MonitorOnly: cfg.Scan.MonitorOnly,
			}

			logger.Info("starting pass",
				"subreddit", cfg.Reddit.Subreddit,
				"hot_take", cfg.Scan.HotTake,
				"monitor_only", cfg.Scan.MonitorOnly,
				"state_backend", cfg.State.Backend,
			)
			report, runErr := runner.Run(ctx)
			if report == nil {
				return runErr
			}

			if err := writeReport(cmd, logger, report, reportMode); err != nil {
				logger.Warn("failed to write report", "error", err)
			}
			exportReport(cmd.Context(), logger, cfg, report)

			if runErr != nil {
				if errors.Is(runErr, scan.ErrLedgerSave) {
					logger.Error("ledgers were not saved; replies of this pass may be repeated", "error", runErr)
				}
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&monitorOnly, "monitor-only", false, "Log matches instead of posting replies; observed items are still recorded")
	cmd.Flags().IntVar(&hotTake, "hot-take", config.DefaultHotTake, "Number of hot posts to scan")
	cmd.Flags().StringVar(&reportMode, "report", reportText, "Where to write the pass report (text, log, none)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Upper bound for the whole pass (0 disables)")

	return cmd
}

func writeReport(cmd *cobra.Command, logger *slog.Logger, report *scan.Report, mode string) error {
	switch mode {
	case reportText:
		return report.Render(cmd.OutOrStdout())
	case reportLog:
		w := logging.NewWriter(logger, "report")
		defer w.Flush()
		return report.Render(w)
	default:
		return nil
	}
}

// exportReport publishes the report to the configured metric sinks and GitHub Actions.
// Failures are logged and never fail the pass.
func exportReport(ctx context.Context, logger *slog.Logger, cfg *config.Config, report *scan.Report) {
	if path := cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(cfg.ResolvePath(path), report); err != nil {
			logger.Warn("failed to write metrics textfile", "error", err)
		}
	}
	if url := cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
		defer cancel()
		if err := metrics.Push(pushCtx, url, cfg.Metrics.Job, cfg.Reddit.Subreddit, report); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}

	if err := ghoutput.Write(report.Summary()); err != nil {
		logger.Warn("failed to write GitHub outputs", "error", err)
	}
	var buf bytes.Buffer
	if err := report.Render(&buf); err == nil {
		if err := ghoutput.AppendSummary("### rrbot pass\n\n```\n" + buf.String() + "```\n"); err != nil {
			logger.Warn("failed to write GitHub step summary", "error", err)
		}
	}
}
