// Package transport exposes conductor's engine dispatcher over three
// wire framings: newline-delimited JSON over a Unix socket or TCP
// connection, and HTTP/WebSocket for browser and tooling clients. All
// three decode a types.Command, call engine.Engine.Dispatch, and
// encode the resulting types.CommandResult — none of them know
// anything about sessions, nodes, or graphs beyond that envelope.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/agentfleet/conductor/internal/engine"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// serveConn runs the newline-delimited JSON command/result loop shared
// by the Unix and TCP listeners: read one JSON-encoded Command per
// line, dispatch it, write one JSON-encoded CommandResult line back.
// One goroutine per connection; a connection's commands are handled
// sequentially, matching the single-writer-per-connection assumption
// the dispatcher's handlers already make about session state.
func serveConn(ctx context.Context, conn net.Conn, e *engine.Engine) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd types.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			_ = enc.Encode(types.CommandResult{
				Success: false,
				Error:   types.ErrInvalidInput,
				Message: "malformed command: " + err.Error(),
			})
			continue
		}

		result := e.Dispatch(ctx, cmd)
		if err := enc.Encode(result); err != nil {
			if err != io.EOF {
				logging.Warn().Err(err).Msg("transport: failed to write command result")
			}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		logging.Warn().Err(err).Msg("transport: connection scan error")
	}
}

// acceptLoop accepts connections on listener until ctx is cancelled or
// Accept fails, spawning serveConn for each.
func acceptLoop(ctx context.Context, listener net.Listener, e *engine.Engine) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go serveConn(ctx, conn, e)
	}
}
