package repo

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"statusd/pkg/dirlist"
	"statusd/pkg/protocol"
)

// IndexStats holds the three dirtiness flags. Staged is computed from the
// index against HEAD and never degrades to unknown; unstaged and untracked
// touch the working tree and report FlagUnknown when the index exceeds the
// caller's size threshold.
type IndexStats struct {
	Staged    int
	Unstaged  int
	Untracked int
}

// NoIndexLimit disables the index size threshold.
const NoIndexLimit int64 = -1

// IndexStats computes the dirtiness flags. maxIndexSize below zero means no
// threshold; otherwise an index with more entries than maxIndexSize skips
// the working-tree scans and reports unstaged/untracked as FlagUnknown, so
// a threshold of zero degrades every non-empty index.
func (h *Handle) IndexStats(headHash plumbing.Hash, maxIndexSize int64) (IndexStats, error) {
	stats := IndexStats{
		Staged:    protocol.FlagAbsent,
		Unstaged:  protocol.FlagAbsent,
		Untracked: protocol.FlagAbsent,
	}

	idx, err := h.repo.Storer.Index()
	if err != nil || idx == nil {
		// No index file yet (fresh repository): nothing staged, everything
		// under the root is a candidate untracked file.
		idx = &index.Index{}
	}

	stats.Staged, err = h.stagedFlag(idx, headHash)
	if err != nil {
		return stats, err
	}

	if maxIndexSize >= 0 && int64(len(idx.Entries)) > maxIndexSize {
		stats.Unstaged = protocol.FlagUnknown
		stats.Untracked = protocol.FlagUnknown
		return stats, nil
	}

	stats.Unstaged = h.unstagedFlag(idx)
	stats.Untracked = h.untrackedFlag(idx)
	return stats, nil
}

// stagedFlag diffs the index against the HEAD tree without touching the
// working tree, so it stays cheap even for repositories over the threshold.
func (h *Handle) stagedFlag(idx *index.Index, headHash plumbing.Hash) (int, error) {
	if headHash.IsZero() {
		if len(idx.Entries) > 0 {
			return protocol.FlagPresent, nil
		}
		return protocol.FlagAbsent, nil
	}

	commit, err := h.repo.CommitObject(headHash)
	if err != nil {
		return protocol.FlagAbsent, &protocol.ResolutionError{Ref: headHash.String(), Err: err}
	}
	tree, err := commit.Tree()
	if err != nil {
		return protocol.FlagAbsent, &protocol.ResolutionError{Ref: headHash.String(), Err: err}
	}

	byPath := make(map[string]*index.Entry, len(idx.Entries))
	for _, e := range idx.Entries {
		byPath[e.Name] = e
	}

	matched := 0
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return protocol.FlagAbsent, &protocol.ResolutionError{Ref: headHash.String(), Err: err}
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		e, ok := byPath[name]
		if !ok || e.Hash != entry.Hash || e.Mode != entry.Mode {
			return protocol.FlagPresent, nil
		}
		matched++
	}
	// Index entries absent from the HEAD tree are newly staged files.
	if matched != len(idx.Entries) {
		return protocol.FlagPresent, nil
	}
	return protocol.FlagAbsent, nil
}

// unstagedFlag stats every index entry against the filesystem. A file is
// only re-hashed when its size matches but its mtime does not, mirroring
// git's racily-clean handling; the common clean case costs one lstat per
// entry.
func (h *Handle) unstagedFlag(idx *index.Index) int {
	for _, e := range idx.Entries {
		path := filepath.Join(h.root, filepath.FromSlash(e.Name))
		fi, err := os.Lstat(path)
		if err != nil {
			return protocol.FlagPresent // deleted or unreadable
		}
		switch e.Mode {
		case filemode.Symlink:
			if fi.Mode()&os.ModeSymlink == 0 {
				return protocol.FlagPresent
			}
			target, err := os.Readlink(path)
			if err != nil || plumbing.ComputeHash(plumbing.BlobObject, []byte(target)) != e.Hash {
				return protocol.FlagPresent
			}
		case filemode.Regular, filemode.Executable:
			if !fi.Mode().IsRegular() {
				return protocol.FlagPresent
			}
			wantExec := e.Mode == filemode.Executable
			if wantExec != (fi.Mode()&0o111 != 0) {
				return protocol.FlagPresent
			}
			if e.Size > 0 && fi.Size() != int64(e.Size) {
				return protocol.FlagPresent
			}
			if fi.ModTime().Equal(e.ModifiedAt) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil || plumbing.ComputeHash(plumbing.BlobObject, data) != e.Hash {
				return protocol.FlagPresent
			}
		default:
			// Submodules and other gitlink entries are not scanned.
		}
	}
	return protocol.FlagAbsent
}

// untrackedFlag walks the working tree with dirlist, early-exiting on the
// first file that is neither in the index nor ignored. Nested .gitignore
// files are honored by parsing them with their directory as the pattern
// domain as the walk descends.
func (h *Handle) untrackedFlag(idx *index.Index) int {
	tracked := make(map[string]struct{}, len(idx.Entries))
	for _, e := range idx.Entries {
		tracked[e.Name] = struct{}{}
	}

	patterns := h.excludePatterns()
	matcher := gitignore.NewMatcher(patterns)

	var ents dirlist.Entries
	stack := []string{""}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dir := h.root
		if rel != "" {
			dir = filepath.Join(h.root, filepath.FromSlash(rel))
		}
		if err := dirlist.ListInto(dir, &ents); err != nil {
			continue // unreadable directory: nothing to report from it
		}

		if added := readIgnoreFile(filepath.Join(dir, ".gitignore"), splitPath(rel)); len(added) > 0 {
			patterns = append(patterns, added...)
			matcher = gitignore.NewMatcher(patterns)
		}

		for i := 0; i < ents.Len(); i++ {
			name := string(ents.Name(i))
			if name == ".git" {
				continue
			}
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}

			typ := ents.Type(i)
			if typ == dirlist.Unknown {
				fi, err := os.Lstat(filepath.Join(dir, name))
				if err != nil {
					continue
				}
				if fi.IsDir() {
					typ = dirlist.Dir
				} else {
					typ = dirlist.Regular
				}
			}

			segs := splitPath(childRel)
			if typ == dirlist.Dir {
				if !matcher.Match(segs, true) {
					stack = append(stack, childRel)
				}
				continue
			}
			if _, ok := tracked[childRel]; ok {
				continue
			}
			if matcher.Match(segs, false) {
				continue
			}
			return protocol.FlagPresent
		}
	}
	return protocol.FlagAbsent
}

// excludePatterns loads the repository-wide exclude file. Root and nested
// .gitignore files are picked up during the walk itself.
func (h *Handle) excludePatterns() []gitignore.Pattern {
	return readIgnoreFile(filepath.Join(h.commonDir(), "info", "exclude"), nil)
}

func readIgnoreFile(path string, domain []string) []gitignore.Pattern {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns
}

func splitPath(rel string) []string {
	if rel == "" {
		return nil
	}
	return strings.Split(rel, "/")
}

// AheadBehind counts commits reachable from local but not from upstream and
// vice versa, the two sides of `upstream...local`. Each side is counted
// against the other side's full ancestor set, not just their merge bases: a
// merge carrying a redundant parent can make an upstream ancestor reachable
// through an edge that bypasses every merge base, and such commits must not
// be counted.
func (h *Handle) AheadBehind(local, upstream plumbing.Hash) (ahead, behind int, err error) {
	if local == upstream {
		return 0, 0, nil
	}
	lc, err := h.repo.CommitObject(local)
	if err != nil {
		return 0, 0, &protocol.ResolutionError{Ref: local.String(), Err: err}
	}
	uc, err := h.repo.CommitObject(upstream)
	if err != nil {
		return 0, 0, &protocol.ResolutionError{Ref: upstream.String(), Err: err}
	}
	upSet, err := ancestorSet(uc)
	if err != nil {
		return 0, 0, err
	}
	localSet, err := ancestorSet(lc)
	if err != nil {
		return 0, 0, err
	}
	if ahead, err = countExcluding(lc, upSet); err != nil {
		return 0, 0, err
	}
	if behind, err = countExcluding(uc, localSet); err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

// ancestorSet collects every commit reachable from c, c included.
func ancestorSet(c *object.Commit) (map[plumbing.Hash]bool, error) {
	set := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(c, nil, nil)
	err := iter.ForEach(func(cm *object.Commit) error {
		set[cm.Hash] = true
		return nil
	})
	if err != nil {
		return nil, &protocol.ResolutionError{Ref: c.Hash.String(), Err: err}
	}
	return set, nil
}

// countExcluding counts commits reachable from c but absent from exclude,
// including c itself unless it is excluded.
func countExcluding(c *object.Commit, exclude map[plumbing.Hash]bool) (int, error) {
	if exclude[c.Hash] {
		return 0, nil
	}
	n := 0
	iter := object.NewCommitPreorderIter(c, exclude, nil)
	err := iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	})
	if err != nil {
		return 0, &protocol.ResolutionError{Ref: c.Hash.String(), Err: err}
	}
	return n, nil
}
