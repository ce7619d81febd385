package engine

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/pkg/types"
)

// NodeInteractionHandler: RUN_COMMAND, EXECUTE_INPUT, SEND_INTERRUPT,
// WRITE_DATA, GET_BUFFER, GET_HISTORY.

func handleExecuteInput(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	return executeOn(ctx, e, params, "input")
}

// handleRunCommand is EXECUTE_INPUT's shell-oriented sibling, grounded
// on the teacher's RunShellRequest{Command, Timeout}: same dispatch,
// a "command" param instead of "input", and an optional timeout.
func handleRunCommand(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	return executeOn(ctx, e, params, "command")
}

func executeOn(ctx context.Context, e *Engine, params map[string]any, inputKey string) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	input, err := requireString(params, inputKey)
	if err != nil {
		return nil, err
	}

	execID := ulid.Make().String()
	ectx := types.ExecutionContext{SessionID: s.ID, Input: input, ExecID: execID}
	if seconds := optionalInt(params, "timeoutSeconds", 0); seconds > 0 {
		ectx.Timeout = time.Duration(seconds) * time.Second
	}

	start := time.Now()
	result, execErr := s.ExecuteNode(ctx, id, ectx)
	recordHistoryWithExecID(e, s.ID, id, execID, types.HistoryInput, input, start)

	if execErr != nil {
		return nil, execErr
	}
	return result, nil
}

func handleSendInterrupt(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	return nil, n.Interrupt()
}

func handleWriteData(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	data, err := requireString(params, "data")
	if err != nil {
		return nil, err
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	term, ok := n.(*node.TerminalNode)
	if !ok {
		return nil, invalidInput("node %q does not accept raw writes (only terminal nodes do)", id)
	}
	return nil, term.WriteRaw([]byte(data))
}

func handleGetBuffer(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	n, ok := s.GetNode(id)
	if !ok {
		return nil, engineerr.NotFound("node %q not found", id)
	}
	term, ok := n.(*node.TerminalNode)
	if !ok {
		return nil, invalidInput("node %q has no buffer (only terminal nodes do)", id)
	}
	if lines := optionalInt(params, "tailLines", 0); lines > 0 {
		return string(term.ReadTail(lines)), nil
	}
	return string(term.Buffer()), nil
}

func handleGetHistory(ctx context.Context, e *Engine, params map[string]any) (any, error) {
	s, err := resolveSession(e, params)
	if err != nil {
		return nil, err
	}
	id, err := requireString(params, "id")
	if err != nil {
		return nil, err
	}
	if e.History == nil {
		return []types.HistoryEntry{}, nil
	}
	entries, err := e.History.Read(s.ID, id)
	if err != nil {
		return nil, engineerr.BackendError(err)
	}
	return entries, nil
}

// recordHistoryWithExecID appends one history entry tagged with the
// ulid generated for the Execute call that produced it, so REPL_QUERY
// can correlate an entry back to one invocation.
func recordHistoryWithExecID(e *Engine, sessionID, nodeID, execID string, op types.HistoryOp, payload any, start time.Time) {
	if e.History == nil {
		return
	}
	duration := time.Since(start).Milliseconds()
	_ = e.History.Append(types.HistoryEntry{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		NodeID:     nodeID,
		Op:         op,
		Payload:    payload,
		DurationMs: &duration,
		ExecID:     execID,
	})
}
