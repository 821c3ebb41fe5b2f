// Package commands implements the CLI commands for the anubis build tool.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/anubis-build/anubis/internal/app"
	"github.com/anubis-build/anubis/internal/core/ports"
)

// CLI represents the command line interface for anubis.
type CLI struct {
	app     *app.App
	log     ports.Logger
	rootCmd *cobra.Command
}

// New creates a new CLI instance over the wired components.
func New(c *app.Components) *CLI {
	rootCmd := &cobra.Command{
		Use:           "anubis",
		Short:         "A build system for C/C++ projects driven by Papyrus configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (error|warn|info|debug|trace)")

	cli := &CLI{
		app:     c.App,
		log:     c.Logger,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		level, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		if setter, ok := cli.log.(interface{ SetLevel(string) }); ok {
			setter.SetLevel(level)
		}
		return nil
	}

	rootCmd.AddCommand(cli.newBuildCmd())
	rootCmd.AddCommand(cli.newInstallToolchainsCmd())
	rootCmd.AddCommand(cli.newVersionCmd())

	return cli
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
