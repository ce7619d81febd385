package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/agentfleet/conductor/internal/engine"
	"github.com/agentfleet/conductor/internal/logging"
)

// TCPServer serves the same newline-delimited JSON command/result
// framing as UnixServer, over a TCP listener — for operators who run
// conductor's control plane across hosts rather than co-located with
// its clients.
type TCPServer struct {
	addr     string
	engine   *engine.Engine
	listener net.Listener
}

func NewTCPServer(addr string, e *engine.Engine) *TCPServer {
	return &TCPServer{addr: addr, engine: e}
}

func (s *TCPServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("transport: listening on tcp %s: %w", s.addr, err)
	}
	s.listener = listener
	logging.Info().Str("addr", listener.Addr().String()).Msg("tcp control socket listening")

	go func() {
		if err := acceptLoop(ctx, listener, s.engine); err != nil {
			logging.Error().Err(err).Msg("tcp server accept loop exited")
		}
	}()
	return nil
}

// Addr returns the bound address, resolving a ":0" ephemeral port
// after Start — tests that bind to port 0 read this to learn where to
// dial.
func (s *TCPServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *TCPServer) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
