// Package repo wraps go-git repositories behind a handle/cache pair built
// for repeated low-latency status queries. A Handle keeps one repository
// open and carries a derived-state cache (resolved tag names keyed by commit)
// that is safe to touch from the request loop and pool workers at the same
// time. The Cache maps working-tree roots to handles, bounded by an LRU
// policy that never frees a handle while an async tag lookup still holds it.
package repo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"statusd/pkg/protocol"
	"statusd/pkg/workpool"
)

// Handle is one open repository. It is shared by reference between the
// request loop and pool workers running tag lookups; the only state mutated
// from both sides is the tag cache, which has its own lock. It is not
// copyable and is owned by the Cache that created it.
type Handle struct {
	repo   *git.Repository
	root   string // working tree root, no trailing separator
	gitDir string // resolved .git directory

	mu   sync.Mutex
	tags map[plumbing.Hash]string // commit -> tag name, "" = looked up, none found

	futmu    sync.Mutex
	inflight []*workpool.Future[string]

	watcher *fsnotify.Watcher
}

// Open opens the repository whose working tree root is root. Most callers
// go through Cache.Open instead, which discovers the root and deduplicates.
func Open(root string) (*Handle, error) {
	r, err := git.PlainOpen(root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, &protocol.NotRepositoryError{Path: root}
		}
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	gitDir, err := resolveGitDir(root)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		repo:   r,
		root:   strings.TrimRight(root, string(filepath.Separator)),
		gitDir: gitDir,
		tags:   make(map[plumbing.Hash]string),
	}
	h.watch()
	return h, nil
}

// Root returns the working tree root with the trailing separator trimmed.
func (h *Handle) Root() string { return h.root }

// Head resolves the repository's HEAD. A repository with no commits yet
// (unborn HEAD) yields (nil, nil); the caller emits empty commit-dependent
// fields for that case rather than abandoning the request.
func (h *Handle) Head() (*plumbing.Reference, error) {
	head, err := h.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, &protocol.ResolutionError{Ref: "HEAD", Err: err}
	}
	return head, nil
}

// BranchName returns the short local branch name, or "" when head is nil or
// detached.
func BranchName(head *plumbing.Reference) string {
	if head == nil || !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// Upstream describes the remote-tracking counterpart of the current branch.
type Upstream struct {
	Short string // e.g. "origin/main"
	URL   string // remote url, "" if the remote has none configured
	Hash  plumbing.Hash
}

// Upstream returns the configured upstream of head's branch, or nil when
// head is detached, the branch has no upstream configured, or the
// remote-tracking reference does not exist locally.
func (h *Handle) Upstream(head *plumbing.Reference) (*Upstream, error) {
	branch := BranchName(head)
	if branch == "" {
		return nil, nil
	}
	cfg, err := h.repo.Config()
	if err != nil {
		return nil, &protocol.ResolutionError{Ref: "config", Err: err}
	}
	b := cfg.Branches[branch]
	if b == nil || b.Remote == "" || b.Merge == "" {
		return nil, nil
	}
	mergeShort := b.Merge.Short()
	refName := plumbing.NewRemoteReferenceName(b.Remote, mergeShort)
	ref, err := h.repo.Reference(refName, true)
	if err != nil {
		// Configured but never fetched: treat as no upstream.
		return nil, nil
	}
	up := &Upstream{
		Short: b.Remote + "/" + mergeShort,
		Hash:  ref.Hash(),
	}
	if rc := cfg.Remotes[b.Remote]; rc != nil && len(rc.URLs) > 0 {
		up.URL = rc.URLs[0]
	}
	return up, nil
}

// State reports the in-progress operation, if any: "merge", "rebase",
// "rebase-interactive", "apply-mailbox", "cherry-pick", "revert", "bisect"
// or StateNone. Detection reads the marker files git leaves in the git
// directory, which is how git itself advertises these states.
func (h *Handle) State() string {
	exists := func(elem ...string) bool {
		_, err := os.Stat(filepath.Join(append([]string{h.gitDir}, elem...)...))
		return err == nil
	}
	switch {
	case exists("rebase-merge", "interactive"):
		return "rebase-interactive"
	case exists("rebase-merge"):
		return "rebase"
	case exists("rebase-apply", "rebasing"):
		return "rebase"
	case exists("rebase-apply"):
		return "apply-mailbox"
	case exists("MERGE_HEAD"):
		return "merge"
	case exists("CHERRY_PICK_HEAD"):
		return "cherry-pick"
	case exists("REVERT_HEAD"):
		return "revert"
	case exists("BISECT_LOG"):
		return "bisect"
	}
	return protocol.StateNone
}

// Stashes counts stash entries by reading the stash reflog, which is the
// on-disk representation of the stash stack. go-git has no stash API.
func (h *Handle) Stashes() int {
	path := filepath.Join(h.commonDir(), "logs", "refs", "stash")
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20) // reflog lines carry full messages
	for sc.Scan() {
		if len(sc.Bytes()) > 0 {
			n++
		}
	}
	return n
}

// commonDir resolves the shared git directory for linked worktrees; for a
// normal repository it is gitDir itself.
func (h *Handle) commonDir() string {
	data, err := os.ReadFile(filepath.Join(h.gitDir, "commondir"))
	if err != nil {
		return h.gitDir
	}
	common := strings.TrimSpace(string(data))
	if !filepath.IsAbs(common) {
		common = filepath.Join(h.gitDir, common)
	}
	return common
}

// --- Tag resolution ---

// TagFuture submits resolution of a tag name for target to the pool and
// returns the future. A previously resolved target is answered from the
// handle's tag cache without a pool round trip. The future is tracked so
// Drain can join it before the handle is ever freed.
func (h *Handle) TagFuture(p *workpool.Pool, target plumbing.Hash) *workpool.Future[string] {
	h.mu.Lock()
	name, hit := h.tags[target]
	h.mu.Unlock()
	if hit {
		return workpool.Resolved(name)
	}

	f := workpool.Submit(p, func() (string, error) {
		name, err := h.lookupTag(target)
		if err != nil {
			return "", err
		}
		h.mu.Lock()
		h.tags[target] = name
		h.mu.Unlock()
		return name, nil
	})
	h.track(f)
	return f
}

// lookupTag scans the tag refs for one pointing at target, peeling annotated
// tags. Returns "" when no tag matches; that is not an error. Which tag wins
// when several point at the same commit is unspecified.
func (h *Handle) lookupTag(target plumbing.Hash) (string, error) {
	iter, err := h.repo.Tags()
	if err != nil {
		return "", &protocol.ResolutionError{Ref: "refs/tags", Err: err}
	}
	defer iter.Close()

	found := ""
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tag, terr := h.repo.TagObject(hash); terr == nil {
			hash = tag.Target
		}
		if hash == target {
			found = ref.Name().Short()
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return "", &protocol.ResolutionError{Ref: "refs/tags", Err: err}
	}
	return found, nil
}

// track registers an outstanding future, sweeping already-completed ones.
func (h *Handle) track(f *workpool.Future[string]) {
	h.futmu.Lock()
	defer h.futmu.Unlock()
	kept := h.inflight[:0]
	for _, g := range h.inflight {
		if !g.Done() {
			kept = append(kept, g)
		}
	}
	h.inflight = append(kept, f)
}

// Drain joins every outstanding tag future, discarding results and
// failures. It is the join-before-free half of the eviction protocol: after
// Drain returns, no pool worker references the handle.
func (h *Handle) Drain() {
	h.futmu.Lock()
	inflight := h.inflight
	h.inflight = nil
	h.futmu.Unlock()
	for _, f := range inflight {
		_, _ = f.Join()
	}
}

// --- Derived-state invalidation ---

// watch installs a best-effort fsnotify watch on the git directory so ref
// updates (new commits, new tags, packed-refs rewrites) drop the tag cache.
// The daemon works correctly without it; a failed watch just means stale
// cache entries survive until eviction.
func (h *Handle) watch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	h.watcher = w
	_ = w.Add(h.gitDir)
	_ = w.Add(filepath.Join(h.gitDir, "refs", "tags"))
	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				h.mu.Lock()
				clear(h.tags)
				h.mu.Unlock()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Close drains outstanding futures and releases the watcher. Only the Cache
// calls it, on eviction or teardown.
func (h *Handle) Close() {
	h.Drain()
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// resolveGitDir locates the git directory for root, following the
// "gitdir: path" indirection used by linked worktrees and submodules.
func resolveGitDir(root string) (string, error) {
	dotGit := filepath.Join(root, ".git")
	fi, err := os.Stat(dotGit)
	if err != nil {
		return "", &protocol.NotRepositoryError{Path: root}
	}
	if fi.IsDir() {
		return dotGit, nil
	}
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", &protocol.NotRepositoryError{Path: root}
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", &protocol.NotRepositoryError{Path: root}
	}
	dir := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return dir, nil
}
