package engine

import (
	"context"

	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/node"
	"github.com/agentfleet/conductor/internal/parser"
	"github.com/agentfleet/conductor/internal/session"
	"github.com/agentfleet/conductor/internal/terminal"
	"github.com/agentfleet/conductor/pkg/types"
)

// buildNode constructs a node.Node from CREATE_NODE params. "backend"
// selects the variant and matches the variant tags in pkg/types.Variant
// (spec.md's literal example: CREATE_NODE(backend=bash, id="b")).
// Function nodes have no JSON-expressible body and so aren't
// constructible through this path; identity is auto-created per
// session and not creatable here either.
func buildNode(ctx context.Context, e *Engine, s *session.Session, id string, params map[string]any) (node.Node, error) {
	backend := optionalString(params, "backend", "")
	switch types.Variant(backend) {
	case types.VariantBash:
		return node.NewBashNode(id, optionalString(params, "shell", ""), optionalString(params, "dir", ""), optionalStringSlice(params, "env")), nil

	case types.VariantTerminalPTY:
		return buildTerminalPTYNode(ctx, e, s, id, params)

	case types.VariantTerminalAttached:
		return buildTerminalAttachNode(ctx, e, s, id, params)

	case types.VariantLLMSingleShot:
		return buildSingleShotNode(s, id, params)

	case types.VariantLLMChat:
		return buildChatNode(s, id, params)

	case types.VariantMCP:
		command, err := requireString(params, "command")
		if err != nil {
			return nil, err
		}
		return node.StartMCPNode(id, command, optionalStringSlice(params, "args"))

	default:
		return nil, invalidInput("unsupported backend %q", backend)
	}
}

func buildParser(params map[string]any) parser.Parser {
	switch optionalString(params, "parser", "none") {
	case "claude":
		return parser.NewClaudeParser()
	case "gemini":
		return parser.NewGeminiParser()
	default:
		return parser.NewNoneParser()
	}
}

func buildTerminalPTYNode(ctx context.Context, e *Engine, s *session.Session, id string, params map[string]any) (node.Node, error) {
	command, err := requireString(params, "command")
	if err != nil {
		return nil, err
	}
	cols := optionalInt(params, "cols", 120)
	rows := optionalInt(params, "rows", 40)
	env := optionalStringSlice(params, "env")

	if provider := optionalStringMap(params, "provider"); len(provider) > 0 {
		inst, err := e.Proxies.StartProxy(ctx, id, buildProviderSpec(params))
		if err != nil {
			return nil, err
		}
		s.RegisterProxy(id, inst)
		env = append(env, "ANTHROPIC_BASE_URL="+inst.URL())
	}

	backend, err := terminal.StartPTY(command, optionalStringSlice(params, "args"), env, cols, rows)
	if err != nil {
		_ = s.StopProxy(ctx, id)
		return nil, engineerr.BackendError(err)
	}
	return node.NewTerminalNode(id, s.ID, backend, buildParser(params), nil), nil
}

func buildTerminalAttachNode(ctx context.Context, e *Engine, s *session.Session, id string, params map[string]any) (node.Node, error) {
	target, err := requireString(params, "target")
	if err != nil {
		return nil, err
	}
	backend, err := terminal.AttachTmux(target)
	if err != nil {
		return nil, engineerr.BackendError(err)
	}

	// An attached node joins a process already running, so there is no
	// environment left to inject a proxy URL into — the proxy still gets
	// started (for the same circuit-breaking/dialect-translation benefit
	// on whatever client that external process was configured with) and
	// its lifecycle still tracks the node, but wiring the URL into the
	// external process's own config is outside conductor's control.
	if provider := optionalStringMap(params, "provider"); len(provider) > 0 {
		inst, err := e.Proxies.StartProxy(ctx, id, buildProviderSpec(params))
		if err != nil {
			return nil, err
		}
		s.RegisterProxy(id, inst)
	}

	return node.NewTerminalNode(id, s.ID, backend, buildParser(params), nil), nil
}

func buildProviderSpec(params map[string]any) types.ProviderSpec {
	provider := optionalStringMap(params, "provider")
	return types.ProviderSpec{
		APIFormat: types.ProviderFormat(optionalString(provider, "apiFormat", string(types.FormatAnthropic))),
		BaseURL:   optionalString(provider, "baseUrl", ""),
		APIKey:    optionalString(provider, "apiKey", ""),
		Model:     optionalString(provider, "model", ""),
	}
}

func buildSingleShotNode(s *session.Session, id string, params map[string]any) (node.Node, error) {
	client, err := node.NewSingleShotClient(buildProviderSpec(params))
	if err != nil {
		return nil, engineerr.BackendError(err)
	}
	tools, err := buildSingleShotTools(s, optionalStringSlice(params, "toolNodes"))
	if err != nil {
		return nil, err
	}
	return node.NewSingleShotNode(id, client, tools), nil
}

func buildChatNode(s *session.Session, id string, params map[string]any) (node.Node, error) {
	client, err := node.NewSingleShotClient(buildProviderSpec(params))
	if err != nil {
		return nil, engineerr.BackendError(err)
	}
	byID, err := toolCapablesByID(s, optionalStringSlice(params, "toolNodes"))
	if err != nil {
		return nil, err
	}
	var tools []types.ToolDefinition
	var executor node.ToolExecutor
	if len(byID) > 0 {
		capables := make([]node.ToolCapable, 0, len(byID))
		for _, tc := range byID {
			capables = append(capables, tc)
		}
		tools = node.BuildCatalog(capables...)
		executor = node.NewExecutor(byID)
	}
	return node.NewChatNode(id, client, optionalString(params, "systemPrompt", ""), tools, executor), nil
}

func buildSingleShotTools(s *session.Session, toolNodeIDs []string) ([]types.ToolDefinition, error) {
	byID, err := toolCapablesByID(s, toolNodeIDs)
	if err != nil {
		return nil, err
	}
	if len(byID) == 0 {
		return nil, nil
	}
	capables := make([]node.ToolCapable, 0, len(byID))
	for _, tc := range byID {
		capables = append(capables, tc)
	}
	return node.BuildCatalog(capables...), nil
}

// toolCapablesByID resolves already-registered tool-capable nodes by
// id, keyed for direct use as node.NewExecutor's dispatch table.
func toolCapablesByID(s *session.Session, ids []string) (map[string]node.ToolCapable, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	byID := make(map[string]node.ToolCapable, len(ids))
	for _, id := range ids {
		n, ok := s.GetNode(id)
		if !ok {
			return nil, invalidInput("tool node %q not found", id)
		}
		tc, ok := n.(node.ToolCapable)
		if !ok {
			return nil, invalidInput("node %q is not tool-capable", id)
		}
		byID[id] = tc
	}
	return byID, nil
}

