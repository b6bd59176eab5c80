package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func fixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	r, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))
	if err := r.Storer.SetReference(head); err != nil {
		t.Fatalf("set HEAD: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	w, err := r.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := w.Add("file.txt"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test Author", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func TestClientFetch(t *testing.T) {
	c, err := startClient()
	if err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer c.Close()

	dir := fixtureRepo(t)
	status, err := c.fetch(dir, 10*time.Second)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if status.Branch != "main" {
		t.Fatalf("branch = %q, want main", status.Branch)
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	if status.Workdir != want {
		t.Fatalf("workdir = %q, want %q", status.Workdir, want)
	}
}

func TestClientFetchNonRepositoryTimesOut(t *testing.T) {
	c, err := startClient()
	if err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer c.Close()

	if _, err := c.fetch(t.TempDir(), 200*time.Millisecond); err == nil {
		t.Fatal("want timeout error for non-repository directory")
	}
}

func TestClientRecoversAfterTimeout(t *testing.T) {
	c, err := startClient()
	if err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer c.Close()

	_, _ = c.fetch(t.TempDir(), 200*time.Millisecond)

	dir := fixtureRepo(t)
	status, err := c.fetch(dir, 10*time.Second)
	if err != nil {
		t.Fatalf("fetch after timeout: %v", err)
	}
	if status.Branch != "main" {
		t.Fatalf("branch = %q, want main", status.Branch)
	}
}
