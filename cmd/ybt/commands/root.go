// Package commands implements the CLI commands for ybt.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/ybt/internal/app"
	"go.trai.ch/ybt/internal/build"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/zerr"
)

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, roots []string, opts app.Options) (*domain.BuildReport, error)
	Plan(ctx context.Context, roots []string, opts app.Options) (*domain.Plan, error)
	Test(ctx context.Context, roots []string, opts app.Options) (*domain.TestReport, error)
	Tree(ctx context.Context, root string, w io.Writer, opts app.Options) error
	Dot(ctx context.Context, roots []string, w io.Writer, withEnvs bool, opts app.Options) error
}

// Configurer applies process-wide settings before a command runs.
type Configurer func(app.Settings) error

// CLI represents the command line interface for ybt.
type CLI struct {
	app       Application
	configure Configurer
	rootCmd   *cobra.Command
}

// New creates a new CLI instance with the given app. configure may be nil.
func New(a Application, configure Configurer) *CLI {
	rootCmd := &cobra.Command{
		Use:           "ybt",
		Short:         "A hermetic, cache-aware build orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.StringP("dir", "C", "", "Start declaration discovery in this directory")
	flags.IntP("jobs", "j", 0, "Maximum number of parallel jobs (default from settings)")
	flags.BoolP("no-cache", "n", false, "Bypass the artifact cache and force execution")
	flags.String("strategy", "", "Default remote cache strategy: none or remote-by-tag")
	flags.String("policy-severity", "", "Default policy severity: fatal or warn")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("log-format", "pretty", "Log format: pretty or json")
	flags.String("trace", "none", "Tracer: none, otel or progrock")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after each run")

	c := &CLI{
		app:       a,
		configure: configure,
		rootCmd:   rootCmd,
	}
	rootCmd.PersistentPreRunE = c.preRun

	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newTestCmd())
	rootCmd.AddCommand(c.newTreeCmd())
	rootCmd.AddCommand(c.newDotCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) preRun(cmd *cobra.Command, _ []string) error {
	if c.configure == nil {
		return nil
	}
	flags := cmd.Flags()
	verbose, _ := flags.GetBool("verbose")
	format, _ := flags.GetString("log-format")
	trace, _ := flags.GetString("trace")
	metricsFile, _ := flags.GetString("metrics-file")

	switch format {
	case "pretty", "json":
	default:
		return zerr.With(zerr.New("invalid log format, want pretty or json"), "log_format", format)
	}

	return c.configure(app.Settings{
		Verbose:     verbose,
		JSONLogs:    format == "json",
		LogOutput:   cmd.ErrOrStderr(),
		Trace:       trace,
		MetricsFile: metricsFile,
	})
}

// options reads the run flags shared by build, plan and test.
func options(cmd *cobra.Command) app.Options {
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	jobs, _ := flags.GetInt("jobs")
	noCache, _ := flags.GetBool("no-cache")
	strategy, _ := flags.GetString("strategy")
	severity, _ := flags.GetString("policy-severity")
	return app.Options{
		Dir:             dir,
		Jobs:            jobs,
		NoCache:         noCache,
		DefaultStrategy: strategy,
		PolicySeverity:  domain.Severity(severity),
	}
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
