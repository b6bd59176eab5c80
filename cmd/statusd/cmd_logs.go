package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"statusd/pkg/eventlog"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail    int
	typ     string
	session string
	follow  bool
	db      string
}

// newLogsCmd creates the "statusd logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query and tail daemon event logs",
		Long:  "Displays events from the daemon event log.\nOptionally filter by event type or session and follow new events.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := cfg.db
			if dbPath == "" {
				dbPath = eventlog.DefaultDBPath()
			}
			reader, err := eventlog.NewReader(dbPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer reader.Close()

			w := cmd.OutOrStdout()
			if cfg.follow {
				return followLogs(cmd.Context(), reader, w, &cfg)
			}
			return printLogs(cmd.Context(), reader, w, &cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().StringVar(&cfg.typ, "type", "", "filter by event type (e.g. request_emitted)")
	cmd.Flags().StringVar(&cfg.session, "session", "", "filter by daemon session id")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "poll for new events every 1s")
	cmd.Flags().StringVar(&cfg.db, "db", "", "event log database path")

	return cmd
}

// printLogs displays the last N matching events in chronological order.
func printLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg *logsConfig) error {
	events, err := reader.Query(ctx, eventlog.QueryOpts{
		Type:    cfg.typ,
		Session: cfg.session,
		Limit:   cfg.tail,
	})
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Fprintln(w, "no events found")
		return nil
	}

	// Query returns newest first; print oldest first.
	for i := len(events) - 1; i >= 0; i-- {
		formatEvent(w, &events[i])
	}
	return nil
}

// followLogs prints the initial tail, then polls for newer events.
func followLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg *logsConfig) error {
	events, err := reader.Query(ctx, eventlog.QueryOpts{
		Type:    cfg.typ,
		Session: cfg.session,
		Limit:   cfg.tail,
	})
	if err != nil {
		return err
	}

	var last time.Time
	for i := len(events) - 1; i >= 0; i-- {
		formatEvent(w, &events[i])
		if events[i].CreatedAt.After(last) {
			last = events[i].CreatedAt
		}
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			after := last.Add(time.Second) // created_at has second resolution
			fresh, err := reader.Query(ctx, eventlog.QueryOpts{
				Type:    cfg.typ,
				Session: cfg.session,
				After:   &after,
			})
			if err != nil {
				return err
			}
			for i := len(fresh) - 1; i >= 0; i-- {
				formatEvent(w, &fresh[i])
				if fresh[i].CreatedAt.After(last) {
					last = fresh[i].CreatedAt
				}
			}
		}
	}
}

// formatEvent writes one event in a human-readable format.
func formatEvent(w io.Writer, e *eventlog.Event) {
	fmt.Fprintf(w, "%s | %-8s | %-18s | %-10s | %s %s\n",
		e.CreatedAt.Format("2006-01-02 15:04:05"),
		shortSession(e.Session), e.Type, e.RequestID, e.Dir, e.Detail)
}

// shortSession truncates a session UUID for display.
func shortSession(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
