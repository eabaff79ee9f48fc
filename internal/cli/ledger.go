package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/rrbot/internal/state"
)

// newLedgerCommand groups the ledger inspection and seeding subcommands.
func newLedgerCommand(opts *Options) *cobra.Command {
	return newGroupCommand("ledger", "Inspect or seed the reply ledgers",
		newLedgerListCommand(opts),
		newLedgerAddCommand(opts),
	)
}

func newLedgerListCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:       "list <posts|comments>",
		Short:     "Print the ids recorded in a ledger, one per line",
		Args:      cobra.ExactArgs(1),
		ValidArgs: state.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := openStoreFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			l, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = l.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func newLedgerAddCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:       "add <posts|comments> <id>...",
		Short:     "Mark ids as already answered so no pass replies to them",
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: state.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, logger, err := openStoreFromCmd(opts, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			name := args[0]
			l, err := store.Load(cmd.Context(), name)
			if err != nil {
				// An unreadable ledger is never overwritten.
				return fmt.Errorf("refusing to modify %s: %w", store.Describe(name), err)
			}
			added := 0
			for _, id := range args[1:] {
				if l.Insert(id) {
					added++
				}
			}
			if err := store.Save(cmd.Context(), name, l); err != nil {
				return err
			}
			logger.Info("ledger updated", "ledger", name, "location", store.Describe(name), "added", added, "total", l.Len())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d of %d ids to %s\n", added, len(args)-1, name)
			return err
		},
	}
}
