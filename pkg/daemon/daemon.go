// Package daemon implements the statusd request loop: read one framed
// request, assemble the repository status with the tag lookup overlapped on
// the worker pool, emit one framed response, repeat. Requests are processed
// strictly sequentially on the loop goroutine; only tag lookups run on pool
// workers, and every submitted lookup is joined before the request that
// spawned it is finalized or abandoned.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/go-git/go-git/v5/plumbing"
	"golang.org/x/sys/unix"

	"statusd/pkg/eventlog"
	"statusd/pkg/protocol"
	"statusd/pkg/repo"
	"statusd/pkg/workpool"
)

// Config holds daemon configuration. withDefaults fills in worker count and
// cache capacity; MaxIndexSize is taken as given, since zero is meaningful.
type Config struct {
	// In supplies framed requests; Out receives framed responses. Neither
	// may carry anything else, which is why the daemon never writes
	// diagnostics to its stdio.
	In  io.Reader
	Out io.Writer

	// Workers is the tag-resolution pool size (default: GOMAXPROCS-ish,
	// one per CPU).
	Workers int

	// MaxIndexSize degrades unstaged/untracked detection to "unknown" when
	// the index has more entries. Zero is a real threshold (every non-empty
	// index degrades); repo.NoIndexLimit disables the check entirely.
	MaxIndexSize int64

	// CacheCapacity bounds the repository handle cache.
	CacheCapacity int

	// ReadyPID, when nonzero, receives SIGWINCH once the daemon is ready
	// to serve. The interactive consumer uses it to avoid racing the
	// daemon's startup.
	ReadyPID int

	// LockFD, when positive, is flocked exclusively at startup so a second
	// daemon attached to the same channel fails fast. Zero disables.
	LockFD int

	// Events receives lifecycle and request events. Optional.
	Events *eventlog.Log

	// Opener overrides repository opening, for tests.
	Opener repo.Opener

	// RelaxedVerification mirrors the historical flag disabling strict
	// object-hash and index-checksum verification. go-git performs neither
	// check on its read paths, so the flag is accepted for compatibility
	// and recorded, but changes nothing.
	RelaxedVerification bool
}

func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = repo.DefaultCapacity
	}
	return c
}

// Daemon is the request loop and its collaborators. Create with New, drive
// with Run; there is no graceful shutdown beyond Run returning when the
// input channel closes.
type Daemon struct {
	cfg    Config
	cache  *repo.Cache
	pool   *workpool.Pool
	reader *protocol.Reader
}

// New assembles a daemon. It does not touch the input or output yet.
func New(cfg Config) *Daemon {
	cfg = cfg.withDefaults()
	return &Daemon{
		cfg:    cfg,
		cache:  repo.NewCache(cfg.CacheCapacity, cfg.Opener),
		pool:   workpool.New(cfg.Workers),
		reader: protocol.NewReader(cfg.In),
	}
}

// Run acquires the lock, signals readiness and serves requests until the
// input channel reaches EOF or ctx is cancelled between requests. A failure
// inside one request is recorded and the loop keeps going; only a broken
// input channel ends it.
func (d *Daemon) Run(ctx context.Context) error {
	if d.cfg.LockFD > 0 {
		if err := unix.Flock(d.cfg.LockFD, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			return fmt.Errorf("lock fd %d: another daemon is already serving this channel: %w", d.cfg.LockFD, err)
		}
	}

	d.record(ctx, eventlog.TypeDaemonStart, "", "", "workers="+strconv.Itoa(d.cfg.Workers))

	if d.cfg.ReadyPID > 0 {
		_ = unix.Kill(d.cfg.ReadyPID, unix.SIGWINCH)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := d.reader.ReadRequest()
		if err != nil {
			var fe *protocol.FramingError
			switch {
			case errors.As(err, &fe):
				// Reader already resynchronized; drop the frame and go on.
				d.record(ctx, eventlog.TypeFramingError, "", "", fe.Reason)
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				return nil
			default:
				return fmt.Errorf("read request: %w", err)
			}
		}

		d.record(ctx, eventlog.TypeRequestReceived, req.ID, req.Dir, "")
		if err := d.process(req); err != nil {
			// Abandoned: no response bytes were written for this id. The
			// consumer times out; the event log keeps the reason.
			d.record(ctx, eventlog.TypeRequestAbandoned, req.ID, req.Dir, err.Error())
			continue
		}
		d.record(ctx, eventlog.TypeRequestEmitted, req.ID, req.Dir, "")
	}
}

// process assembles and emits the response for one request. Any returned
// error means the request was abandoned with nothing written. The field
// order is fixed and documented on protocol.ResponseWriter.
func (d *Daemon) process(req protocol.Request) error {
	h, err := d.cache.Open(req.Dir)
	if err != nil {
		return err
	}

	head, err := h.Head()
	if err != nil {
		return err
	}
	var headHash plumbing.Hash
	if head != nil {
		headHash = head.Hash()
	}

	// The tag lookup is the single most expensive sub-query; overlap it
	// with everything below. Whatever happens to this request, the future
	// is joined before we return so it can never outlive the handle.
	var tagFut *workpool.Future[string]
	if head != nil {
		tagFut = h.TagFuture(d.pool, headHash)
	}
	joined := false
	defer func() {
		if tagFut != nil && !joined {
			_, _ = tagFut.Join()
		}
	}()

	resp := protocol.NewResponse(req.ID)
	resp.Print(h.Root())

	if head != nil {
		resp.Print(headHash.String())
	} else {
		resp.Print("") // no commits yet
	}
	resp.Print(repo.BranchName(head))

	up, err := h.Upstream(head)
	if err != nil {
		return err
	}
	if up != nil {
		resp.Print(up.Short)
		resp.Print(up.URL)
	} else {
		resp.Print("")
		resp.Print("")
	}

	resp.Print(h.State())

	stats, err := h.IndexStats(headHash, d.cfg.MaxIndexSize)
	if err != nil {
		return err
	}
	resp.PrintInt(stats.Staged)
	resp.PrintInt(stats.Unstaged)
	resp.PrintInt(stats.Untracked)

	ahead, behind := 0, 0
	if head != nil && up != nil {
		ahead, behind, err = h.AheadBehind(headHash, up.Hash)
		if err != nil {
			return err
		}
	}
	resp.PrintInt(ahead)
	resp.PrintInt(behind)

	resp.PrintInt(h.Stashes())

	tag := ""
	if tagFut != nil {
		joined = true
		if name, err := tagFut.Join(); err == nil {
			tag = name
		}
		// A failed tag lookup degrades to an empty field; it never
		// invalidates the rest of the response.
	}
	resp.Print(tag)

	return resp.Flush(d.cfg.Out)
}

// record writes an event if an event log is attached. Event-log failures
// are swallowed: observability must never break request processing.
func (d *Daemon) record(ctx context.Context, typ, reqID, dir, detail string) {
	if d.cfg.Events == nil {
		return
	}
	_ = d.cfg.Events.Record(ctx, typ, reqID, dir, detail)
}

// Close tears down the handle cache. Tests use it; the production daemon
// runs until killed.
func (d *Daemon) Close() {
	d.cache.Close()
}
