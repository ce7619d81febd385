// Package parser translates raw terminal buffers into structured
// ParsedResponse values and detects readiness (process idle, waiting on
// stdin) for the interactive CLI dialects a terminal node can drive.
//
// Parsers are stateless: IsReady and Parse read a buffer without
// mutating it, and are safe to call from multiple goroutines against
// the same snapshot.
package parser

import "github.com/agentfleet/conductor/pkg/types"

// Parser is the contract every dialect implementation satisfies.
type Parser interface {
	// IsReady reports whether the process is idle and waiting for user
	// input. Implementations scan from the tail for the latest status
	// line and consider only content after it, so a stale "in progress"
	// marker earlier in the buffer never produces a false positive.
	IsReady(buffer []byte) bool

	// Parse extracts the region since the last user-prompt indicator and
	// splits it into sections per the dialect's conventions. Parse must
	// be idempotent: calling it twice on the same stable buffer produces
	// equal ParsedResponse values.
	Parse(buffer []byte) types.ParsedResponse
}

// Name identifies a built-in parser for config/wire serialization.
type Name string

const (
	NameClaude Name = "claude"
	NameGemini Name = "gemini"
	NameNone   Name = "none"
)

// ByName resolves a built-in parser; an unrecognized name falls back to
// NONE rather than erroring, since a misconfigured parser name should
// degrade a node to "treat everything as plain text", not crash it.
func ByName(name Name) Parser {
	switch name {
	case NameClaude:
		return NewClaudeParser()
	case NameGemini:
		return NewGeminiParser()
	default:
		return NewNoneParser()
	}
}
