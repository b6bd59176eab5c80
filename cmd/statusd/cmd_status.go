package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statusReport is the machine-readable shape of "statusd status --yaml".
type statusReport struct {
	Status DaemonStatusValue `yaml:"status"`
	PID    int               `yaml:"pid,omitempty"`
}

// newStatusCmd creates the "statusd status" subcommand.
func newStatusCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state",
		Long:  "Reports whether the status daemon is running, stopped,\nor left behind a stale PID file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath, err := DefaultPIDPath()
			if err != nil {
				return err
			}

			status, pid, err := DaemonStatus(pidPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asYAML {
				out, err := yaml.Marshal(statusReport{Status: status, PID: pid})
				if err != nil {
					return fmt.Errorf("marshal status: %w", err)
				}
				_, err = w.Write(out)
				return err
			}

			switch status {
			case StatusRunning:
				fmt.Fprintf(w, "daemon running (PID %d)\n", pid)
			case StatusStale:
				fmt.Fprintf(w, "daemon dead, stale PID file (PID %d)\n", pid)
			case StatusStopped:
				fmt.Fprintln(w, "daemon not running")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "emit machine-readable YAML")

	return cmd
}
