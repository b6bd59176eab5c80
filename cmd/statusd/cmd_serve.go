package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"statusd/pkg/config"
	"statusd/pkg/daemon"
	"statusd/pkg/eventlog"
	"statusd/pkg/repo"
)

// serveConfig holds the flag values for the serve command.
type serveConfig struct {
	inputFD       int
	outputFD      int
	lockFD        int
	readyPID      int
	workers       int
	maxIndexSize  int64
	cacheCapacity int
	dbPath        string
	configPath    string
	relaxed       bool
	noEvents      bool
}

// newServeCmd creates the "statusd serve" subcommand: the daemon itself.
// Requests arrive on --input-fd, responses leave on --output-fd; everything
// else (startup progress, errors) goes to stderr so the protocol channel
// stays clean.
func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the status daemon",
		Long:  "Runs the status daemon: reads framed requests from the input descriptor\nand writes framed responses to the output descriptor until EOF.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.Flags().Changed, &cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.inputFD, "input-fd", 0, "file descriptor to read requests from")
	cmd.Flags().IntVar(&cfg.outputFD, "output-fd", 1, "file descriptor to write responses to")
	cmd.Flags().IntVar(&cfg.lockFD, "lock-fd", 0, "file descriptor to flock exclusively (0 = no lock)")
	cmd.Flags().IntVar(&cfg.readyPID, "pid-signal", 0, "send SIGWINCH to this PID once ready")
	cmd.Flags().IntVar(&cfg.workers, "workers", 0, "tag-resolution worker count (0 = one per CPU)")
	cmd.Flags().Int64Var(&cfg.maxIndexSize, "max-index-size", repo.NoIndexLimit, "index entries above which dirty checks report unknown (-1 = no limit, 0 = always unknown)")
	cmd.Flags().IntVar(&cfg.cacheCapacity, "cache-capacity", 0, "open repository cache size (0 = default)")
	cmd.Flags().StringVar(&cfg.dbPath, "db", "", "event log database path")
	cmd.Flags().StringVar(&cfg.configPath, "config", "", "config file path (default ~/.statusd/config.toml)")
	cmd.Flags().BoolVar(&cfg.relaxed, "relaxed-verification", false, "accepted for compatibility; verification is already lazy")
	cmd.Flags().BoolVar(&cfg.noEvents, "no-events", false, "disable the event log")

	return cmd
}

// runServe resolves configuration, writes the PID file and runs the daemon
// until EOF or a termination signal. changed reports whether a flag was set
// explicitly; explicit flags win over the config file.
func runServe(parent context.Context, changed func(string) bool, cfg *serveConfig) error {
	if err := applyConfigFile(changed, cfg); err != nil {
		return err
	}

	pidPath, err := DefaultPIDPath()
	if err != nil {
		return err
	}
	if err := WritePIDFile(pidPath, os.Getpid()); err != nil {
		return err
	}

	ctx, cleanup := SetupSignalHandler(parent, pidPath)
	defer cleanup()

	var events *eventlog.Log
	if !cfg.noEvents {
		dbPath := cfg.dbPath
		if dbPath == "" {
			dbPath = eventlog.DefaultDBPath()
		}
		if dbPath != "" {
			events, err = eventlog.Open(dbPath)
			if err != nil {
				// The daemon is useful without its event log.
				fmt.Fprintf(os.Stderr, "statusd: event log disabled: %v\n", err)
			} else {
				defer events.Close()
			}
		}
	}

	log := newStartupLog(os.Stderr, stderrIsTTY())
	log.Step(fmt.Sprintf("serving on fd %d -> fd %d", cfg.inputFD, cfg.outputFD))

	d := daemon.New(daemon.Config{
		In:                  os.NewFile(uintptr(cfg.inputFD), "requests"),
		Out:                 os.NewFile(uintptr(cfg.outputFD), "responses"),
		Workers:             cfg.workers,
		MaxIndexSize:        cfg.maxIndexSize,
		CacheCapacity:       cfg.cacheCapacity,
		ReadyPID:            cfg.readyPID,
		LockFD:              cfg.lockFD,
		Events:              events,
		RelaxedVerification: cfg.relaxed,
	})
	defer d.Close()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Step("input closed, shutting down")
	return nil
}

// applyConfigFile loads the config file and fills in every value the user
// did not set on the command line.
func applyConfigFile(changed func(string) bool, cfg *serveConfig) error {
	path := cfg.configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}
	file, err := config.Load(path)
	if err != nil {
		return err
	}

	if !changed("workers") && file.Workers > 0 {
		cfg.workers = file.Workers
	}
	if !changed("max-index-size") {
		cfg.maxIndexSize = file.MaxIndexSize
	}
	if !changed("cache-capacity") && file.CacheCapacity > 0 {
		cfg.cacheCapacity = file.CacheCapacity
	}
	if !changed("db") && file.DBPath != "" {
		cfg.dbPath = file.DBPath
	}
	return nil
}
