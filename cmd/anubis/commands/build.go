package commands

import (
	"github.com/spf13/cobra"

	"github.com/anubis-build/anubis/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	var opts app.BuildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build targets under a mode and toolchain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Build(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "", "Mode target, e.g. //mode:linux_dev")
	cmd.Flags().StringArrayVarP(&opts.Targets, "targets", "t", nil, "Target to build, e.g. //examples:hello (repeatable)")
	cmd.Flags().StringVar(&opts.Toolchain, "toolchain", app.DefaultToolchainTarget, "Toolchain target")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Worker count (defaults to the core count)")

	_ = cmd.MarkFlagRequired("mode")
	_ = cmd.MarkFlagRequired("targets")

	return cmd
}
