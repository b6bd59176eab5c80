package repo_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initRepo creates an empty repository on branch main in a temp dir.
func initRepo(t *testing.T) (string, *git.Repository) {
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
	return dir, r
}

// commitFile writes name with content, stages it and commits.
func commitFile(t *testing.T, r *git.Repository, dir, name, content, msg string) plumbing.Hash {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	w, err := r.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := w.Add(name); err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	hash, err := w.Commit(msg, &git.CommitOptions{Author: testSignature()})
	if err != nil {
		t.Fatalf("commit %s: %v", msg, err)
	}
	return hash
}

func testSignature() *object.Signature {
	return &object.Signature{
		Name:  "Test Author",
		Email: "test@example.com",
		When:  time.Now(),
	}
}

// setUpstream configures origin/main as the upstream of main, pointing the
// remote-tracking ref at hash.
func setUpstream(t *testing.T, r *git.Repository, url string, hash plumbing.Hash) {
	t.Helper()
	if _, err := r.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{url}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	cfg, err := r.Config()
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	cfg.Branches["main"] = &gitconfig.Branch{
		Name:   "main",
		Remote: "origin",
		Merge:  plumbing.NewBranchReferenceName("main"),
	}
	if err := r.SetConfig(cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	ref := plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "main"), hash)
	if err := r.Storer.SetReference(ref); err != nil {
		t.Fatalf("set remote ref: %v", err)
	}
}

// resetHard moves main and the working tree back to hash.
func resetHard(t *testing.T, r *git.Repository, hash plumbing.Hash) {
	t.Helper()
	w, err := r.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := w.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		t.Fatalf("reset: %v", err)
	}
}
