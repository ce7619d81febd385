package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/history"
	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/internal/parser"
	"github.com/agentfleet/conductor/internal/terminal"
	"github.com/agentfleet/conductor/pkg/types"
)

// ReadyPollInterval is how often TerminalNode polls the parser for
// readiness while a submitted input is outstanding.
const ReadyPollInterval = 2 * time.Second

// ConsecutiveReadyChecks is how many consecutive positive readiness
// checks are required before a response is considered complete, to
// absorb transient idle-looking frames between output bursts.
const ConsecutiveReadyChecks = 2

// SettleDelay is a short pause after the readiness threshold is met,
// before the buffer is parsed, giving any trailing output a chance to
// land.
const SettleDelay = 150 * time.Millisecond

// TerminalNode is a persistent node composing a terminal.Backend and a
// parser.Parser: it drives an interactive CLI and returns structured
// responses once the backend looks idle.
type TerminalNode struct {
	Meta

	backend terminal.Backend
	active  parser.Parser
	hist    *history.Writer
	session string

	pollInterval time.Duration // defaults to ReadyPollInterval; overridable in tests

	mu sync.Mutex
}

// NewTerminalNode wires a backend + parser pair; hist may be nil, in
// which case history is not recorded (used by tests and throwaway
// sessions).
func NewTerminalNode(id, sessionID string, backend terminal.Backend, p parser.Parser, hist *history.Writer) *TerminalNode {
	n := &TerminalNode{
		Meta:         NewMeta(id, types.VariantTerminalPTY),
		backend:      backend,
		active:       p,
		hist:         hist,
		session:      sessionID,
		pollInterval: ReadyPollInterval,
	}
	n.setState(types.NodeReady)
	return n
}

func (n *TerminalNode) appendHistory(op types.HistoryOp, payload string) {
	if n.hist == nil {
		return
	}
	if err := n.hist.Append(types.HistoryEntry{
		Timestamp: time.Now(),
		SessionID: n.session,
		NodeID:    n.ID(),
		Op:        op,
		Payload:   payload,
	}); err != nil {
		logging.Warn().Err(err).Str("node", n.ID()).Msg("terminal node: history append failed")
	}
}

// submitSequence returns the bytes appended after raw input before
// handing it to the backend; Claude-style CLIs submit on a bare CR,
// other dialects expect a trailing newline.
func (n *TerminalNode) submitSequence() []byte {
	if n.active == nil {
		return []byte("\n")
	}
	switch n.active.(type) {
	case *parser.ClaudeParser:
		return []byte("\r")
	default:
		return []byte("\n")
	}
}

// Execute writes ctx.Input (expected string) to the backend, polls for
// readiness, then parses the resulting buffer. Rejects if the node is
// not READY. Timeout failures return a timeout-kind error without
// stopping the backend, so a later retry can still observe the reply.
func (n *TerminalNode) Execute(ctx context.Context, ectx types.ExecutionContext) (any, error) {
	n.mu.Lock()
	if n.State() != types.NodeReady {
		n.mu.Unlock()
		return nil, fmt.Errorf("terminal node %q: not ready (state=%s)", n.ID(), n.State())
	}
	n.setState(types.NodeBusy)
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		if n.State() != types.NodeStopped {
			n.setState(types.NodeReady)
		}
		n.mu.Unlock()
	}()

	input, _ := ectx.Input.(string)
	n.appendHistory(types.HistoryInput, input)

	payload := append([]byte(input), n.submitSequence()...)
	if err := n.backend.Write(payload); err != nil {
		return nil, err
	}

	timeout := ectx.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	consecutive := 0
	for {
		if n.backend.Closed() {
			break
		}
		if n.active != nil && n.active.IsReady(n.backend.Buffer()) {
			consecutive++
			if consecutive >= ConsecutiveReadyChecks {
				break
			}
		} else {
			consecutive = 0
		}

		if time.Now().After(deadline) {
			return nil, engineerr.Timeout("terminal node %q: timeout waiting for readiness", n.ID())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.pollInterval):
		}
	}

	time.Sleep(SettleDelay)

	buffer := n.backend.Buffer()
	var response types.ParsedResponse
	if n.active != nil {
		response = n.active.Parse(buffer)
	} else {
		response = parser.NewNoneParser().Parse(buffer)
	}

	n.appendHistory(types.HistoryOutput, response.Raw)
	return response, nil
}

// Persistent always reports true: a terminal node owns a live backend
// process that outlives any single Execute call.
func (n *TerminalNode) Persistent() bool { return true }

// Interrupt sends the PTY interrupt byte; safe to call multiple times
// and when idle.
func (n *TerminalNode) Interrupt() error {
	n.appendHistory(types.HistoryInterrupt, "")
	return n.backend.Interrupt()
}

// Stop flushes history, stops the backend with a graceful timeout, then
// a forced kill.
func (n *TerminalNode) Stop(ctx context.Context) error {
	n.mu.Lock()
	n.setState(types.NodeStopping)
	n.mu.Unlock()

	err := n.backend.Stop(ctx, 5*time.Second)

	n.mu.Lock()
	n.setState(types.NodeStopped)
	n.mu.Unlock()
	return err
}

// WriteRaw sends data straight to the backend, bypassing the submit/
// readiness-poll cycle Execute drives. Used by WRITE_DATA, for callers
// that want to feed keystrokes (e.g. an interactive prompt response)
// without waiting for a full response cycle.
func (n *TerminalNode) WriteRaw(data []byte) error {
	n.appendHistory(types.HistoryInput, string(data))
	return n.backend.Write(data)
}

// Buffer returns the backend's full accumulated content.
func (n *TerminalNode) Buffer() []byte {
	return n.backend.Buffer()
}

// ReadTail returns the last lines lines of the backend's buffer.
func (n *TerminalNode) ReadTail(lines int) []byte {
	return n.backend.ReadTail(lines)
}

var _ Node = (*TerminalNode)(nil)
