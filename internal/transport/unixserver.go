package transport

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/agentfleet/conductor/internal/engine"
	"github.com/agentfleet/conductor/internal/logging"
)

// UnixServer listens on a Unix domain socket and serves the
// newline-delimited JSON command/result framing. Stale socket files
// from a previous unclean shutdown are removed before binding, the
// way the teacher's own unix listener setup does for its control
// socket.
type UnixServer struct {
	path     string
	engine   *engine.Engine
	listener net.Listener
}

func NewUnixServer(path string, e *engine.Engine) *UnixServer {
	return &UnixServer{path: path, engine: e}
}

func (s *UnixServer) Start(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("transport: removing stale unix socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("transport: listening on unix socket %s: %w", s.path, err)
	}
	s.listener = listener
	logging.Info().Str("path", s.path).Msg("unix control socket listening")

	go func() {
		if err := acceptLoop(ctx, listener, s.engine); err != nil {
			logging.Error().Err(err).Msg("unix server accept loop exited")
		}
	}()
	return nil
}

func (s *UnixServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.listener.Close(); err != nil {
		return err
	}
	return os.Remove(s.path)
}
