package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/rrbot/internal/env"
	"github.com/codex-k8s/rrbot/internal/reddit"
	"github.com/codex-k8s/rrbot/internal/state"
)

// newDoctorCommand creates the "doctor" subcommand that runs preflight checks.
func newDoctorCommand(opts *Options) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration, ledger storage and Reddit credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, logger, err := openStoreFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.Debug("environment overrides present", "names", env.FromOS().Keys("RRBOT_"))
			logger.Info("config ok",
				"subreddit", cfg.Reddit.Subreddit,
				"hot_take", cfg.Scan.HotTake,
				"monitor_only", cfg.Scan.MonitorOnly,
				"state_backend", cfg.State.Backend,
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			ledgers, err := state.LoadAll(ctx, store)
			if err != nil {
				return fmt.Errorf("ledger storage: %w", err)
			}
			for _, name := range state.Names {
				logger.Info("ledger ok", "ledger", name, "location", store.Describe(name), "entries", ledgers[name].Len())
			}

			if offline {
				logger.Info("doctor checks completed successfully", "reddit", "skipped")
				return nil
			}

			client, err := reddit.NewClient(logger, cfg)
			if err != nil {
				return err
			}
			if err := client.Authenticate(ctx); err != nil {
				return err
			}
			name, err := client.Me(ctx)
			if err != nil {
				return fmt.Errorf("reddit identity: %w", err)
			}
			logger.Info("doctor checks completed successfully", "account", name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the Reddit authentication check")
	return cmd
}
