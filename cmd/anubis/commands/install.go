package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newInstallToolchainsCmd() *cobra.Command {
	var keepDownloads bool

	cmd := &cobra.Command{
		Use:   "install-toolchains",
		Short: "Verify and record the toolchains declared under //toolchains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.InstallToolchains(cmd.Context(), keepDownloads)
		},
	}

	cmd.Flags().BoolVar(&keepDownloads, "keep-downloads", false, "Retain intermediate archives")

	return cmd
}
