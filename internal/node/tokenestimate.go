package node

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/agentfleet/conductor/internal/logging"
	"github.com/agentfleet/conductor/pkg/types"
)

// tokenEstimator falls back to a local cl100k_base tiktoken encoding
// when a provider response carries no usage block at all (TotalTokens
// == 0), so budget tracking still has a number to work with instead of
// silently under-reporting every call through a provider that omits
// usage. cl100k_base is the same approximation the pack's other
// token-budget code (teradata-labs-loom's TokenCounter) uses for
// Claude-family models.
type tokenEstimator struct {
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
}

var globalEstimator = &tokenEstimator{}

func (e *tokenEstimator) encode(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.encoder == nil {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logging.Warn().Err(err).Msg("node: tiktoken encoding unavailable, falling back to char estimate")
			return 0
		}
		e.encoder = enc
	}
	return len(e.encoder.Encode(text, nil, nil))
}

// estimateTokens returns text's token count via tiktoken, or a
// char/4 approximation if the encoder itself couldn't load.
func estimateTokens(text string) int64 {
	if n := globalEstimator.encode(text); n > 0 {
		return int64(n)
	}
	return int64(len(text) / 4)
}

// estimateMessagesTokens sums estimateTokens across a message list's
// content, used only when the provider's own Usage.TotalTokens is zero.
func estimateMessagesTokens(messages []types.ChatMessage) int64 {
	var total int64
	for _, m := range messages {
		total += estimateTokens(m.Content)
	}
	return total
}
