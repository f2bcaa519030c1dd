// Package commands implements the CLI commands for the anvil command engine.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/anvil/internal/app"
	"go.trai.ch/anvil/internal/build"
	"go.trai.ch/anvil/internal/engine/dispatcher"
)

// DefaultPlan is the plan file used when none is given.
const DefaultPlan = "plan.yaml"

// CLI represents the command line interface for anvil.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, planPath string, opts app.RunOptions) (*dispatcher.Report, error)
	Explain(ctx context.Context, planPath string, opts app.RunOptions) ([]app.Explanation, error)
	Clean(ctx context.Context, planPath string, opts app.RunOptions) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "anvil",
		Short:         "An incremental command engine",
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

	rootCmd.PersistentFlags().StringP("settings", "s", "", "Path to the settings file (default: anvil.yaml next to the plan)")
	rootCmd.PersistentFlags().String("backend", "", "State backend: file or sqlite")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newExplainCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
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

// planArg returns the plan path given on the command line or the default.
func planArg(args []string) string {
	if len(args) == 0 {
		return DefaultPlan
	}
	return args[0]
}

// runOptions reads the flags shared by every plan command.
func runOptions(cmd *cobra.Command) app.RunOptions {
	settings, _ := cmd.Flags().GetString("settings")
	backend, _ := cmd.Flags().GetString("backend")
	return app.RunOptions{
		SettingsPath: settings,
		Backend:      backend,
	}
}
