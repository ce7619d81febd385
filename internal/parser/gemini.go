package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agentfleet/conductor/pkg/types"
)

// GeminiParser parses the terminal output of a Gemini CLI-style
// interactive session:
//
//	user prompt:  "> " at the start of a line
//	thinking:     a "✦" marker line plus the lines after it, up to the
//	              next "✦" marker or tool-call box
//	tool call:    "╭─ ToolName" box-drawn header, body lines prefixed "│"
//	text:         any other non-empty line, outside a "✦" block or box
//	ready state:  a bare "> " prompt line with no trailing spinner glyph
//
// The status line carries a spinner glyph (one of "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏") while a
// turn is in flight; its absence from the latest prompt line is the
// readiness signal, playing the same role the Claude dialect gives
// "esc to interrupt".
type GeminiParser struct{}

func NewGeminiParser() *GeminiParser { return &GeminiParser{} }

var geminiSpinnerRE = regexp.MustCompile(`[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`)
var geminiToolHeaderRE = regexp.MustCompile(`^╭─+\s*(\w+)`)
var geminiTokensRE = regexp.MustCompile(`(\d+)\s*tokens`)

func (p *GeminiParser) IsReady(buffer []byte) bool {
	lines := strings.Split(strings.TrimSpace(string(buffer)), "\n")
	if len(lines) < 2 {
		return false
	}

	promptIdx := -1
	floor := len(lines) - 50
	if floor < 0 {
		floor = 0
	}
	for i := len(lines) - 1; i >= floor; i-- {
		if strings.HasPrefix(strings.TrimLeft(lines[i], " "), ">") {
			promptIdx = i
			break
		}
	}
	if promptIdx == -1 {
		return false
	}

	for i := promptIdx; i < len(lines); i++ {
		if geminiSpinnerRE.MatchString(lines[i]) {
			return false
		}
	}
	return true
}

func (p *GeminiParser) Parse(buffer []byte) types.ParsedResponse {
	raw := p.extractResponse(string(buffer))
	return types.ParsedResponse{
		Raw:        raw,
		Sections:   p.parseSections(raw),
		IsComplete: true,
		IsReady:    p.IsReady(buffer),
		Tokens:     p.extractTokens(string(buffer)),
	}
}

func (p *GeminiParser) extractResponse(content string) string {
	lines := strings.Split(content, "\n")

	startIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "> ") && len(strings.TrimSpace(line)) > 1 {
			startIdx = i
		}
	}
	if startIdx == -1 {
		return ""
	}

	endIdx := len(lines)
	for i := startIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimLeft(lines[i], " ")
		if strings.HasPrefix(trimmed, "> ") || strings.TrimSpace(trimmed) == ">" {
			endIdx = i
			break
		}
	}

	if startIdx+1 >= endIdx {
		return ""
	}
	return strings.Join(lines[startIdx+1:endIdx], "\n")
}

func (p *GeminiParser) parseSections(response string) []types.Section {
	var sections []types.Section
	lines := strings.Split(response, "\n")
	i := 0

	for i < len(lines) {
		stripped := strings.TrimSpace(lines[i])

		if strings.HasPrefix(stripped, "✦") {
			text := strings.TrimSpace(strings.TrimPrefix(stripped, "✦"))
			var content []string
			if text != "" {
				content = append(content, text)
			}
			i++
			for i < len(lines) {
				s := strings.TrimSpace(lines[i])
				if strings.HasPrefix(s, "✦") || strings.HasPrefix(s, "╭") {
					break
				}
				if s != "" {
					content = append(content, s)
				}
				i++
			}
			sections = append(sections, types.Section{
				Type:    types.SectionThinking,
				Content: strings.Join(content, "\n"),
			})
			continue
		}

		if m := geminiToolHeaderRE.FindStringSubmatch(stripped); m != nil {
			var body []string
			i++
			for i < len(lines) {
				s := strings.TrimSpace(lines[i])
				if strings.HasPrefix(s, "╰") {
					i++
					break
				}
				body = append(body, strings.TrimPrefix(s, "│"))
				i++
			}
			sections = append(sections, types.Section{
				Type:     types.SectionToolCall,
				Content:  strings.TrimSpace(strings.Join(body, "\n")),
				Metadata: map[string]any{"tool": m[1]},
			})
			continue
		}

		if stripped != "" {
			sections = append(sections, types.Section{Type: types.SectionText, Content: stripped})
		}
		i++
	}

	return sections
}

func (p *GeminiParser) extractTokens(content string) *int64 {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], "tokens") {
			if m := geminiTokensRE.FindStringSubmatch(lines[i]); m != nil {
				n, err := strconv.ParseInt(m[1], 10, 64)
				if err == nil {
					return &n
				}
			}
		}
	}
	return nil
}
