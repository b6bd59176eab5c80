package main

import (
	"fmt"

	"statusd/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root statusd command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "statusd",
		Short:         "Git repository status daemon",
		Long:          "statusd answers git repository status queries over a framed stdin/stdout\nprotocol, keeping repositories open between queries for low latency.",
		Version:       fmt.Sprintf("statusd %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newStopCmd(),
	)

	return cmd
}
