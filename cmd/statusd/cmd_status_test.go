package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// runCommand executes the root command with args and returns its stdout.
func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestStatusNotRunning(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out := runCommand(t, "status")
	if !strings.Contains(out, "not running") {
		t.Fatalf("output = %q, want mention of not running", out)
	}
}

func TestStatusYAML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out := runCommand(t, "status", "--yaml")
	if !strings.Contains(out, "status: stopped") {
		t.Fatalf("output = %q, want status: stopped", out)
	}
}

func TestStatusRunningSelf(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pidPath, err := DefaultPIDPath()
	if err != nil {
		t.Fatalf("pid path: %v", err)
	}
	if err := WritePIDFile(pidPath, os.Getpid()); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	out := runCommand(t, "status")
	if !strings.Contains(out, "running") {
		t.Fatalf("output = %q, want running", out)
	}
}

func TestStopNotRunning(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out := runCommand(t, "stop")
	if !strings.Contains(out, "not running") {
		t.Fatalf("output = %q, want not running", out)
	}
}

func TestVersionFlag(t *testing.T) {
	out := runCommand(t, "--version")
	if !strings.Contains(out, "statusd") {
		t.Fatalf("output = %q, want version string", out)
	}
}
