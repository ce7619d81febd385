package engine

import (
	"github.com/agentfleet/conductor/internal/engineerr"
	"github.com/agentfleet/conductor/internal/session"
	"github.com/agentfleet/conductor/pkg/types"
)

// ValidationHelpers centralizes the param-extraction and lookup checks
// every handler needs, grounded on the original's
// nerve.server.validation.ValidationHelpers (require_param, get_node,
// ...): one place that turns "missing/wrong-typed param" and
// "unknown id" into the same invalid_input / not_found error kinds
// everywhere, instead of each handler inventing its own message.

func invalidInput(format string, args ...any) error {
	return engineerr.InvalidInput(format, args...)
}

func requireString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", invalidInput("missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", invalidInput("param %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func optionalBool(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func optionalInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func optionalStringSlice(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func optionalStringMap(params map[string]any, key string) map[string]any {
	v, ok := params[key]
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}

// resolveSession resolves the session named by params["sessionId"],
// defaulting to the registry's default session when omitted.
func resolveSession(e *Engine, params map[string]any) (*session.Session, error) {
	id := optionalString(params, "sessionId", "")
	s, ok := e.Sessions.Resolve(id)
	if !ok {
		return nil, engineerr.NotFound("session %q not found", id)
	}
	return s, nil
}

func reply(requestID string, data any, err error) types.CommandResult {
	result := engineerr.ToResult(err, requestID)
	if err == nil {
		result.Data = data
	}
	return result
}
