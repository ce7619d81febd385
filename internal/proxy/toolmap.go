package proxy

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ToolIDMapper preserves a bijection between provider-issued tool-call
// ids (OpenAI's call_...) and Anthropic-shaped ids (toolu_...) within one
// conversation scope, so a conversation that round-trips through the
// transform proxy sees consistent tool_use/tool_result ids on both
// sides. Scoped per request (a proxy instance creates a fresh mapper for
// every /v1/messages call) since tool-call ids are only required to be
// consistent within a single request/response exchange.
type ToolIDMapper struct {
	mu          sync.Mutex
	toAnthropic map[string]string // provider id -> anthropic id
	toProvider  map[string]string // anthropic id -> provider id
	seq         uint64
}

func NewToolIDMapper() *ToolIDMapper {
	return &ToolIDMapper{
		toAnthropic: make(map[string]string),
		toProvider:  make(map[string]string),
	}
}

// AnthropicID returns the Anthropic-shaped id for a provider id,
// minting one (toolu_<n>) the first time it's seen.
func (m *ToolIDMapper) AnthropicID(providerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.toAnthropic[providerID]; ok {
		return id
	}
	id := fmt.Sprintf("toolu_%02d%s", atomic.AddUint64(&m.seq, 1), shortHash(providerID))
	m.toAnthropic[providerID] = id
	m.toProvider[id] = providerID
	return id
}

// ProviderID returns the provider id for an Anthropic-shaped id
// previously minted by AnthropicID. An unknown id is returned verbatim
// as a fallback, so a tool_result the caller invents mid-conversation
// doesn't get silently dropped.
func (m *ToolIDMapper) ProviderID(anthropicID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.toProvider[anthropicID]; ok {
		return id
	}
	return anthropicID
}

// shortHash gives minted ids a short, stable, collision-resistant
// suffix derived from the provider id without pulling in a hashing
// library for a 32-bit (eight hex character) suffix.
func shortHash(s string) string {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return fmt.Sprintf("%08x", h)
}
