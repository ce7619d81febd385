package parser

import "github.com/agentfleet/conductor/pkg/types"

// NoneParser is the identity parser: it treats the whole buffer as one
// text section and is always ready, for backends driving a program with
// no recognizable status-line dialect.
type NoneParser struct{}

func NewNoneParser() *NoneParser { return &NoneParser{} }

func (p *NoneParser) IsReady(buffer []byte) bool { return true }

func (p *NoneParser) Parse(buffer []byte) types.ParsedResponse {
	return types.ParsedResponse{
		Raw: string(buffer),
		Sections: []types.Section{
			{Type: types.SectionText, Content: string(buffer)},
		},
		IsComplete: true,
		IsReady:    true,
	}
}
