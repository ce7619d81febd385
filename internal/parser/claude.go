package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agentfleet/conductor/pkg/types"
)

// ClaudeParser parses the terminal output of a Claude Code-style
// interactive CLI:
//
//	user prompt:  "> " followed by the submitted text
//	thinking:     "∴ Thinking…" followed by indented content
//	tool call:    "⏺ ToolName(args)", result lines start with "⎿"
//	text:         "⏺ " followed by plain text
//	ready state:  "-- INSERT --" or "? for shortcuts" with an empty ">" prompt
type ClaudeParser struct{}

func NewClaudeParser() *ClaudeParser { return &ClaudeParser{} }

var claudeToolCallRE = regexp.MustCompile(`^⏺\s+(\w+)\((.*)$`)
var claudeTokensRE = regexp.MustCompile(`(\d+)\s*tokens`)

// IsReady scans from the tail for the latest status line, then checks
// whether any "esc to interrupt"/"esc to cancel" marker appears after it.
// A status line with no such marker after it means Claude finished
// processing and is back at the prompt.
func (p *ClaudeParser) IsReady(buffer []byte) bool {
	lines := strings.Split(strings.TrimSpace(string(buffer)), "\n")
	if len(lines) < 3 {
		return false
	}

	statusIdx := -1
	floor := len(lines) - 50
	if floor < 0 {
		floor = 0
	}
	for i := len(lines) - 1; i >= floor; i-- {
		low := strings.ToLower(lines[i])
		if strings.Contains(low, "-- insert --") || strings.Contains(low, "? for shortcuts") {
			statusIdx = i
			break
		}
	}
	if statusIdx == -1 {
		return false
	}

	for i := statusIdx; i < len(lines); i++ {
		low := strings.ToLower(lines[i])
		if strings.Contains(low, "esc to interrupt") || strings.Contains(low, "esc to cancel") {
			return false
		}
	}
	return true
}

func (p *ClaudeParser) Parse(buffer []byte) types.ParsedResponse {
	raw := p.extractResponse(string(buffer))
	return types.ParsedResponse{
		Raw:        raw,
		Sections:   p.parseSections(raw),
		IsComplete: true,
		IsReady:    p.IsReady(buffer),
		Tokens:     p.extractTokens(string(buffer)),
	}
}

// extractResponse isolates the region between the last real user prompt
// and the current prompt, mirroring the readiness scan's tail-first logic.
func (p *ClaudeParser) extractResponse(content string) string {
	lines := strings.Split(content, "\n")

	startIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "> ") && len(strings.TrimSpace(line)) > 1 {
			if !strings.Contains(line, "(tab to accept)") {
				startIdx = i
			}
		}
	}

	if startIdx == -1 {
		for i, line := range lines {
			stripped := strings.TrimSpace(line)
			if strings.HasPrefix(stripped, "∴") || strings.HasPrefix(stripped, "⏺") {
				startIdx = i - 1
				break
			}
		}
		if startIdx == -1 {
			return ""
		}
	}

	endIdx := len(lines)
	for i := len(lines) - 1; i > startIdx; i-- {
		if strings.Contains(lines[i], "-- INSERT --") {
			floor := i - 10
			if floor < startIdx {
				floor = startIdx
			}
			for j := i - 1; j > floor; j-- {
				stripped := strings.TrimSpace(lines[j])
				if stripped == ">" {
					endIdx = j
					break
				}
				if strings.HasPrefix(stripped, ">") && strings.Contains(stripped, "(tab to accept)") {
					endIdx = j
					break
				}
			}
			break
		}
	}

	if startIdx+1 > endIdx || startIdx+1 > len(lines) {
		return ""
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	return strings.Join(lines[startIdx+1:endIdx], "\n")
}

func (p *ClaudeParser) parseSections(response string) []types.Section {
	var sections []types.Section
	lines := strings.Split(response, "\n")
	i := 0

	for i < len(lines) {
		stripped := strings.TrimSpace(lines[i])

		if strings.HasPrefix(stripped, "∴") {
			var content []string
			i++
			for i < len(lines) {
				s := strings.TrimSpace(lines[i])
				if strings.HasPrefix(s, "⏺") || strings.HasPrefix(s, "∴") {
					break
				}
				content = append(content, lines[i])
				i++
			}
			sections = append(sections, types.Section{
				Type:    types.SectionThinking,
				Content: strings.TrimSpace(strings.Join(content, "\n")),
			})
			continue
		}

		if strings.HasPrefix(stripped, "⏺") {
			if m := claudeToolCallRE.FindStringSubmatch(stripped); m != nil {
				sections = append(sections, types.Section{
					Type:     types.SectionToolCall,
					Content:  stripped,
					Metadata: map[string]any{"tool": m[1]},
				})
			} else {
				sections = append(sections, types.Section{
					Type:    types.SectionText,
					Content: strings.TrimSpace(strings.TrimPrefix(stripped, "⏺")),
				})
			}
			i++
			continue
		}

		i++
	}

	return sections
}

// extractTokens reads a trailing "N tokens" figure off the most recent
// status line, when the dialect reports one.
func (p *ClaudeParser) extractTokens(content string) *int64 {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if (strings.Contains(line, "-- INSERT --") || strings.Contains(line, "? for shortcuts")) && strings.Contains(line, "tokens") {
			if m := claudeTokensRE.FindStringSubmatch(line); m != nil {
				n, err := strconv.ParseInt(m[1], 10, 64)
				if err == nil {
					return &n
				}
			}
		}
	}
	return nil
}
