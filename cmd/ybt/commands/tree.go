package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [target]",
		Short: "Print the dependency tree",
		Long: `Print the dependency tree of a target, or of every top-level target.
Subtrees already printed are marked with (*).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			return c.app.Tree(cmd.Context(), root, cmd.OutOrStdout(), options(cmd))
		},
	}
}
