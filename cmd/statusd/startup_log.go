package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// stderrIsTTY reports whether stderr is attached to a terminal. The startup
// log only animates when a human is watching.
func stderrIsTTY() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// startupLog provides step-by-step startup progress output on stderr. The
// protocol channel never sees any of it.
type startupLog struct {
	w     io.Writer
	isTTY bool
	mu    sync.Mutex
}

// newStartupLog creates a startup logger that writes to w.
// isTTY controls whether checkmarks are decorated or plain.
func newStartupLog(w io.Writer, isTTY bool) *startupLog {
	return &startupLog{
		w:     w,
		isTTY: isTTY,
	}
}

// Step prints a completed step.
func (s *startupLog) Step(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isTTY {
		fmt.Fprintf(s.w, "✓ %s\n", msg)
		return
	}
	fmt.Fprintf(s.w, "statusd: %s\n", msg)
}
