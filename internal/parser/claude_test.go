package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/conductor/pkg/types"
)

func TestClaudeParserIsReadyAfterStatusLine(t *testing.T) {
	p := NewClaudeParser()
	buf := "> build the thing\n⏺ Done, the thing is built.\n\n>\n-- INSERT --\n"
	assert.True(t, p.IsReady([]byte(buf)))
}

func TestClaudeParserNotReadyWhileProcessing(t *testing.T) {
	p := NewClaudeParser()
	buf := "> build the thing\n⏺ working on it\n\n>\n-- INSERT --\nesc to interrupt\n"
	assert.False(t, p.IsReady([]byte(buf)))
}

func TestClaudeParserStaleInProgressMarkerIgnored(t *testing.T) {
	p := NewClaudeParser()
	// "esc to interrupt" appears only before the latest status line, so it
	// must not suppress readiness (readiness-robustness invariant).
	buf := "esc to interrupt\n-- INSERT --\n> first\n⏺ reply\n\n>\n-- INSERT --\n"
	assert.True(t, p.IsReady([]byte(buf)))
}

func TestClaudeParserTooFewLinesNotReady(t *testing.T) {
	p := NewClaudeParser()
	assert.False(t, p.IsReady([]byte("> x\n")))
}

func TestClaudeParserParseExtractsToolCallAndText(t *testing.T) {
	p := NewClaudeParser()
	buf := "> run the tests\n⏺ Bash(go test ./...)\n⏺ All green.\n\n>\n-- INSERT --\n"

	resp := p.Parse([]byte(buf))
	require.Len(t, resp.Sections, 2)
	assert.Equal(t, types.SectionToolCall, resp.Sections[0].Type)
	assert.Equal(t, "Bash", resp.Sections[0].Metadata["tool"])
	assert.Equal(t, types.SectionText, resp.Sections[1].Type)
	assert.Equal(t, "All green.", resp.Sections[1].Content)
	assert.True(t, resp.IsReady)
}

func TestClaudeParserParseExtractsThinking(t *testing.T) {
	p := NewClaudeParser()
	buf := "> think about it\n∴ Thinking…\n  weighing options\n  leaning towards A\n⏺ Going with A.\n\n>\n-- INSERT --\n"

	resp := p.Parse([]byte(buf))
	require.Len(t, resp.Sections, 2)
	assert.Equal(t, types.SectionThinking, resp.Sections[0].Type)
	assert.Contains(t, resp.Sections[0].Content, "weighing options")
}

func TestClaudeParserIsIdempotent(t *testing.T) {
	p := NewClaudeParser()
	buf := []byte("> run it\n⏺ Tool(args)\n⏺ done\n\n>\n-- INSERT --\n")

	first := p.Parse(buf)
	second := p.Parse(buf)
	assert.Equal(t, first, second)
}

func TestClaudeParserExtractsTokenCount(t *testing.T) {
	p := NewClaudeParser()
	buf := "> hi\n⏺ hello\n\n>\n-- INSERT -- 1234 tokens\n"

	resp := p.Parse([]byte(buf))
	require.NotNil(t, resp.Tokens)
	assert.Equal(t, int64(1234), *resp.Tokens)
}
