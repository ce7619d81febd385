package terminal

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/agentfleet/conductor/internal/logging"
)

// PTYBackend forks a child process attached to a pseudo-terminal and owns
// its lifecycle. Output is accumulated into a ring-bounded buffer that
// ReadTail and Buffer read from under lock.
type PTYBackend struct {
	cmd  *exec.Cmd
	pty  *os.File
	name string

	mu     sync.Mutex
	buf    bytes.Buffer
	maxBuf int
	closed bool

	readDone chan struct{}
}

// MaxBufferBytes bounds the accumulated output buffer; the oldest bytes
// are dropped once it is exceeded, matching a scrollback window rather
// than an unbounded transcript.
const MaxBufferBytes = 4 * 1024 * 1024

// StartPTY spawns name with args attached to a new pty, sized rows x cols.
func StartPTY(name string, args []string, env []string, cols, rows int) (*PTYBackend, error) {
	cmd := exec.Command(name, args...)
	if len(env) > 0 {
		cmd.Env = env
	}

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return nil, err
	}

	b := &PTYBackend{
		cmd:      cmd,
		pty:      f,
		name:     name,
		maxBuf:   MaxBufferBytes,
		readDone: make(chan struct{}),
	}
	go b.readLoop()
	return b, nil
}

func (b *PTYBackend) readLoop() {
	defer close(b.readDone)
	chunk := make([]byte, 32*1024)
	for {
		n, err := b.pty.Read(chunk)
		if n > 0 {
			b.mu.Lock()
			b.buf.Write(chunk[:n])
			if b.buf.Len() > b.maxBuf {
				excess := b.buf.Len() - b.maxBuf
				b.buf.Next(excess)
			}
			b.mu.Unlock()
		}
		if err != nil {
			b.mu.Lock()
			b.closed = true
			b.mu.Unlock()
			if err.Error() != "EOF" {
				logging.Debug().Err(err).Str("backend", b.name).Msg("terminal: pty read ended")
			}
			return
		}
	}
}

func (b *PTYBackend) Write(data []byte) error {
	if b.Closed() {
		return ErrClosed
	}
	_, err := b.pty.Write(data)
	return err
}

func (b *PTYBackend) Buffer() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

func (b *PTYBackend) ReadTail(n int) []byte {
	full := b.Buffer()
	lines := bytes.Split(bytes.TrimSuffix(full, []byte("\n")), []byte("\n"))
	if len(lines) <= n {
		return full
	}
	return bytes.Join(lines[len(lines)-n:], []byte("\n"))
}

// Interrupt sends ETX (Ctrl-C) down the pty, the conventional way a
// foreground process group receives SIGINT from its controlling terminal.
func (b *PTYBackend) Interrupt() error {
	return b.Write([]byte{0x03})
}

// Resize updates the pty window size. It is not part of the Backend
// interface, and nothing in conductor calls it.
func (b *PTYBackend) Resize(cols, rows int) error {
	return pty.Setsize(b.pty, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

func (b *PTYBackend) Stop(ctx context.Context, timeout time.Duration) error {
	if b.cmd.Process != nil {
		_ = b.cmd.Process.Signal(os.Interrupt)
	}

	done := make(chan error, 1)
	go func() { done <- b.cmd.Wait() }()

	select {
	case <-done:
	case <-time.After(timeout):
		if b.cmd.Process != nil {
			_ = b.cmd.Process.Kill()
		}
		<-done
	case <-ctx.Done():
		if b.cmd.Process != nil {
			_ = b.cmd.Process.Kill()
		}
		<-done
	}

	_ = b.pty.Close()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *PTYBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
