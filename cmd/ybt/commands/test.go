package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test [targets...]",
		Short: "Run test targets",
		Long: `Run the test targets in the closure of the given targets,
or every test target when none are given.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options(cmd)
			opts.TestAttempts, _ = cmd.Flags().GetInt("test-attempts")
			_, err := c.app.Test(cmd.Context(), args, opts)
			return err
		},
	}
	cmd.Flags().Int("test-attempts", 0, "Attempts per test target without its own attempts (default from settings)")
	return cmd
}
