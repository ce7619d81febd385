// Package engine implements the command dispatcher: the single
// execute(command) -> command_result entry point every transport calls
// into. Grounded on the teacher's internal/server handler-per-domain
// split, generalized from HTTP handlers to transport-agnostic
// Command -> CommandResult functions so the same handler set serves
// Unix, TCP, and HTTP transports alike.
package engine

import (
	"context"

	"github.com/agentfleet/conductor/internal/history"
	"github.com/agentfleet/conductor/internal/proxy"
	"github.com/agentfleet/conductor/internal/session"
	"github.com/agentfleet/conductor/internal/workflow"
	"github.com/agentfleet/conductor/pkg/types"
)

// Engine owns the session registry and the workflow runner and is the
// receiver for every command handler. One Engine serves every
// transport connection; handlers synchronize through the registry and
// session locks, not through the Engine itself.
type Engine struct {
	Sessions  *session.Registry
	Workflows *workflow.Runner
	Proxies   *proxy.Manager
	History   *history.Writer // nil disables history recording
	Config    types.Config
}

// New creates an Engine with a fresh session registry (pre-populated
// with the default session), workflow runner, and proxy manager.
func New(cfg types.Config) *Engine {
	return &Engine{
		Sessions:  session.NewRegistry(),
		Workflows: workflow.NewRunner(),
		Proxies:   proxy.NewManager(),
		History:   history.NewWriter(cfg.HistoryDir),
		Config:    cfg,
	}
}

// Dispatch routes one Command to its handler and converts the outcome
// into a CommandResult. Unknown command types are a programming error
// in the caller (every types.CommandType constant is handled below) and
// surface as invalid_input rather than panicking.
func (e *Engine) Dispatch(ctx context.Context, cmd types.Command) types.CommandResult {
	h, ok := handlers[cmd.Type]
	if !ok {
		return reply(cmd.RequestID, nil, invalidInput("unknown command type %q", cmd.Type))
	}
	data, err := h(ctx, e, cmd.Params)
	return reply(cmd.RequestID, data, err)
}

type handlerFunc func(ctx context.Context, e *Engine, params map[string]any) (any, error)

var handlers = map[types.CommandType]handlerFunc{
	types.CreateSession: handleCreateSession,
	types.DeleteSession:  handleDeleteSession,
	types.ListSessions:   handleListSessions,
	types.GetSession:     handleGetSession,

	types.CreateNode: handleCreateNode,
	types.DeleteNode: handleDeleteNode,
	types.ListNodes:  handleListNodes,
	types.GetNode:    handleGetNode,
	types.ForkNode:   handleForkNode,

	types.RunCommand:    handleRunCommand,
	types.ExecuteInput:  handleExecuteInput,
	types.SendInterrupt: handleSendInterrupt,
	types.WriteData:     handleWriteData,
	types.GetBuffer:     handleGetBuffer,
	types.GetHistory:    handleGetHistory,

	types.CreateGraph:  handleCreateGraph,
	types.DeleteGraph:  handleDeleteGraph,
	types.ListGraphs:   handleListGraphs,
	types.ExecuteGraph: handleExecuteGraph,

	types.CreateWorkflow:  handleCreateWorkflow,
	types.ExecuteWorkflow: handleExecuteWorkflow,
	types.ListWorkflows:   handleListWorkflows,
	types.GetWorkflowRun:  handleGetWorkflowRun,
	types.AnswerGate:      handleAnswerGate,
	types.CancelWorkflow:  handleCancelWorkflow,

	types.ReplShow:     handleReplShow,
	types.ReplDry:      handleReplDry,
	types.ReplValidate: handleReplValidate,
	types.ReplList:     handleReplList,
	types.ReplRead:     handleReplRead,
	types.ReplQuery:    handleReplQuery,
}
