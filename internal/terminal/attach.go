package terminal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// AttachBackend binds to a pane the conductor process does not own —
// a tmux pane identified by target (e.g. "mysession:0.1"). Buffer reads
// capture-pane on demand rather than tailing an owned pty stream, so two
// consecutive Buffer calls can legitimately differ if something else is
// also driving the pane.
type AttachBackend struct {
	target string

	mu     sync.Mutex
	closed bool
}

// AttachTmux attaches to an existing tmux pane without taking ownership
// of its lifecycle; Stop detaches rather than killing the session.
func AttachTmux(target string) (*AttachBackend, error) {
	if err := exec.Command("tmux", "has-session", "-t", target).Run(); err != nil {
		return nil, fmt.Errorf("terminal: tmux target %q not found: %w", target, err)
	}
	return &AttachBackend{target: target}, nil
}

func (a *AttachBackend) Write(data []byte) error {
	if a.Closed() {
		return ErrClosed
	}
	return exec.Command("tmux", "send-keys", "-t", a.target, "-l", string(data)).Run()
}

func (a *AttachBackend) Buffer() []byte {
	out, err := exec.Command("tmux", "capture-pane", "-t", a.target, "-p", "-S", "-").Output()
	if err != nil {
		return nil
	}
	return out
}

func (a *AttachBackend) ReadTail(n int) []byte {
	full := a.Buffer()
	lines := bytes.Split(bytes.TrimSuffix(full, []byte("\n")), []byte("\n"))
	if len(lines) <= n {
		return full
	}
	return bytes.Join(lines[len(lines)-n:], []byte("\n"))
}

func (a *AttachBackend) Interrupt() error {
	if a.Closed() {
		return ErrClosed
	}
	return exec.Command("tmux", "send-keys", "-t", a.target, "C-c").Run()
}

func (a *AttachBackend) Focus() error {
	if a.Closed() {
		return ErrClosed
	}
	return exec.Command("tmux", "select-pane", "-t", a.target).Run()
}

// Stop detaches bookkeeping only; the pane and whatever process lives in
// it are left running, since attach backends never owned them.
func (a *AttachBackend) Stop(ctx context.Context, timeout time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *AttachBackend) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

var (
	_ Backend   = (*AttachBackend)(nil)
	_ Focusable = (*AttachBackend)(nil)
	_ Backend   = (*PTYBackend)(nil)
)
