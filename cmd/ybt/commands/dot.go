package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"
)

func (c *CLI) newDotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dot [targets...]",
		Short: "Print the dependency graph in Graphviz format",
		Long: `Print the dependency graph of targets, or of every target, in Graphviz
dot format. Targets that would be served from the cache are filled grey.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			withEnvs, _ := cmd.Flags().GetBool("with-envs")
			path, _ := cmd.Flags().GetString("output")

			var w io.Writer = cmd.OutOrStdout()
			if path != "" && path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return zerr.With(zerr.Wrap(err, "failed to create dot file"), "path", path)
				}
				defer func() {
					if cerr := f.Close(); cerr != nil && err == nil {
						err = zerr.With(zerr.Wrap(cerr, "failed to write dot file"), "path", path)
					}
				}()
				w = f
			}
			return c.app.Dot(cmd.Context(), args, w, withEnvs, options(cmd))
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the graph to this file instead of stdout")
	cmd.Flags().Bool("with-envs", false, "Include build environments as graph nodes")
	return cmd
}
