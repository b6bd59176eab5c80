package repo

import (
	"os"
	"path/filepath"

	"statusd/pkg/protocol"
)

// Opener opens a handle for a discovered working-tree root. Tests inject one
// to count underlying opens.
type Opener func(root string) (*Handle, error)

// DefaultCapacity bounds the handle cache when the caller does not. One
// prompt rarely watches more than a handful of directories; the bound exists
// so a long-lived daemon queried across many repositories cannot accumulate
// file descriptors and watchers forever.
const DefaultCapacity = 64

// Cache maps working-tree roots to open handles. It is used from the
// request loop only and carries no locking of its own: pool workers never
// touch the path-to-handle mapping, only the handles themselves.
type Cache struct {
	capacity int
	opener   Opener
	entries  map[string]*cacheEntry
	seq      uint64
}

type cacheEntry struct {
	handle   *Handle
	lastUsed uint64
}

// NewCache creates a cache. capacity below 1 selects DefaultCapacity; a nil
// opener selects Open.
func NewCache(capacity int, opener Opener) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if opener == nil {
		opener = Open
	}
	return &Cache{
		capacity: capacity,
		opener:   opener,
		entries:  make(map[string]*cacheEntry),
	}
}

// Open returns the handle for the repository containing dir, opening it on
// first use. Repeated calls resolving to the same root return the same
// handle instance. Errors are typed: NotAccessibleError when dir cannot be
// statted, NotRepositoryError when no ancestor holds a .git entry.
func (c *Cache) Open(dir string) (*Handle, error) {
	root, err := FindRoot(dir)
	if err != nil {
		return nil, err
	}
	c.seq++
	if e, ok := c.entries[root]; ok {
		e.lastUsed = c.seq
		return e.handle, nil
	}
	h, err := c.opener(root)
	if err != nil {
		return nil, err
	}
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[root] = &cacheEntry{handle: h, lastUsed: c.seq}
	return h, nil
}

// Len returns the number of cached handles.
func (c *Cache) Len() int { return len(c.entries) }

// evictOldest closes the least recently used handle. Close drains the
// handle's outstanding tag futures first, so a pool worker can never
// observe a freed handle.
func (c *Cache) evictOldest() {
	var victim string
	var oldest uint64
	for root, e := range c.entries {
		if victim == "" || e.lastUsed < oldest {
			victim, oldest = root, e.lastUsed
		}
	}
	if victim != "" {
		c.entries[victim].handle.Close()
		delete(c.entries, victim)
	}
}

// Close evicts every handle. The daemon has no graceful shutdown, but tests
// and the in-process dash tear caches down.
func (c *Cache) Close() {
	for root, e := range c.entries {
		e.handle.Close()
		delete(c.entries, root)
	}
}

// FindRoot walks upward from dir looking for a .git entry (directory or
// gitdir file) and returns the containing directory. Symlinks are resolved
// first, so every spelling of the same working tree yields the same root
// and therefore the same cache entry.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &protocol.NotAccessibleError{Path: dir, Err: err}
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &protocol.NotAccessibleError{Path: dir, Err: err}
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", &protocol.NotAccessibleError{Path: dir, Err: err}
	}
	if !fi.IsDir() {
		return "", &protocol.NotAccessibleError{Path: dir, Err: os.ErrInvalid}
	}
	for cur := abs; ; {
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", &protocol.NotRepositoryError{Path: dir}
		}
		cur = parent
	}
}
