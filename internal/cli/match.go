package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/rrbot/internal/matcher"
)

// newMatchCommand creates the "match" subcommand that runs the phrase matcher on ad-hoc text.
func newMatchCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "match [text...]",
		Short: "Report whether each text would trigger a reply (reads stdin lines when no args)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())
			m := matcher.New()
			out := cmd.OutOrStdout()

			inputs := args
			if len(inputs) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
				for scanner.Scan() {
					if line := scanner.Text(); strings.TrimSpace(line) != "" {
						inputs = append(inputs, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			matched := 0
			for _, text := range inputs {
				ok := m.Match(text)
				if ok {
					matched++
				}
				if quiet {
					continue
				}
				verdict := "no match"
				if ok {
					verdict = "match"
				}
				if _, err := fmt.Fprintf(out, "%s\t%s\n", verdict, text); err != nil {
					return err
				}
			}
			logger.Debug("match finished", "inputs", len(inputs), "matched", matched)
			if quiet && matched == 0 {
				return fmt.Errorf("no input matched")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print nothing; fail when no input matches")
	return cmd
}
