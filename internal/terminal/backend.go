// Package terminal implements the byte-pipe contract a terminal node
// composes: spawn-and-own a pseudo-terminal, or attach to an externally
// owned pane, plus a rolling buffer view of screen contents.
package terminal

import (
	"context"
	"time"
)

// Backend is the uniform byte I/O + interrupt interface a terminal node
// composes; resizing is not part of it (only PTYBackend has Resize). PTYBackend forks and owns a child process;
// AttachBackend binds to an externally-owned pane.
type Backend interface {
	// Write delivers raw input. The caller is responsible for line endings
	// and control characters.
	Write(data []byte) error

	// Buffer returns the current accumulated content (PTY) or a fresh
	// snapshot (attach).
	Buffer() []byte

	// ReadTail returns the last n lines of the buffer.
	ReadTail(n int) []byte

	// Interrupt delivers SIGINT-equivalent (0x03 to the PTY, or
	// backend-specific key injection for attach backends).
	Interrupt() error

	// Stop attempts graceful termination, then forceful after timeout.
	// Reaps the child to avoid zombies.
	Stop(ctx context.Context, timeout time.Duration) error

	// Closed reports whether the backend has stopped accepting writes.
	Closed() bool
}

// Focusable is an optional capability some attach backends expose; the
// dispatcher type-asserts for it rather than widening Backend.
type Focusable interface {
	Focus() error
}

// ErrClosed is returned by Write and Interrupt once a backend is closed.
// ErrNotStarted is not returned by either backend in this package:
// StartPTY and AttachTmux both hand back a started backend.
type backendError string

func (e backendError) Error() string { return string(e) }

const (
	ErrNotStarted = backendError("terminal: backend not started")
	ErrClosed     = backendError("terminal: backend closed")
)
