package types

import (
	"sync"
	"time"
)

// Budget names per-context resource limits. A zero value field means
// "unlimited" for that counter.
type Budget struct {
	MaxTokens        int64   `json:"maxTokens,omitempty"`
	MaxTimeSeconds   float64 `json:"maxTimeSeconds,omitempty"`
	MaxSteps         int64   `json:"maxSteps,omitempty"`
	MaxAPICalls      int64   `json:"maxApiCalls,omitempty"`
	MaxCostDollars   float64 `json:"maxCostDollars,omitempty"`
}

// limit returns the configured limit for a named counter, and whether one
// was set at all.
func (b *Budget) limit(name string) (float64, bool) {
	if b == nil {
		return 0, false
	}
	switch name {
	case "tokens":
		return float64(b.MaxTokens), b.MaxTokens > 0
	case "api_calls":
		return float64(b.MaxAPICalls), b.MaxAPICalls > 0
	case "cost_dollars":
		return b.MaxCostDollars, b.MaxCostDollars > 0
	case "steps":
		return float64(b.MaxSteps), b.MaxSteps > 0
	default:
		return 0, false
	}
}

// ResourceUsage accumulates named counters with monotonic increments. A
// usage may chain to a parent: every increment also propagates to the
// parent, so nested sub-budgets enforce both local and ancestor limits.
type ResourceUsage struct {
	mu       sync.Mutex
	counters map[string]float64
	start    time.Time
	parent   *ResourceUsage
}

// NewUsage creates a usage tracker, optionally chained to a parent.
func NewUsage(parent *ResourceUsage) *ResourceUsage {
	return &ResourceUsage{
		counters: make(map[string]float64),
		start:    time.Now(),
		parent:   parent,
	}
}

// Increment adds n to the named counter, propagating to every ancestor.
func (u *ResourceUsage) Increment(name string, n float64) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.counters[name] += n
	u.mu.Unlock()
	if u.parent != nil {
		u.parent.Increment(name, n)
	}
}

// Get returns the current value of a named counter.
func (u *ResourceUsage) Get(name string) float64 {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counters[name]
}

// Elapsed returns the wall-clock duration since this usage was created,
// read from a monotonic clock (time.Since uses the monotonic component of
// the stored time.Time).
func (u *ResourceUsage) Elapsed() time.Duration {
	if u == nil {
		return 0
	}
	return time.Since(u.start)
}

// Exceeds reports whether any counter in usage has reached or passed its
// corresponding limit in budget, and if so which counter.
func (u *ResourceUsage) Exceeds(b *Budget) (string, bool) {
	if u == nil || b == nil {
		return "", false
	}
	if limit, ok := b.limit("tokens"); ok && u.Get("tokens") >= limit {
		return "tokens", true
	}
	if limit, ok := b.limit("api_calls"); ok && u.Get("api_calls") >= limit {
		return "api_calls", true
	}
	if limit, ok := b.limit("cost_dollars"); ok && u.Get("cost_dollars") >= limit {
		return "cost_dollars", true
	}
	if limit, ok := b.limit("steps"); ok && u.Get("steps") >= limit {
		return "steps", true
	}
	if b.MaxTimeSeconds > 0 && u.Elapsed().Seconds() >= b.MaxTimeSeconds {
		return "time_seconds", true
	}
	return "", false
}

// CancelToken is a cooperative cancellation signal checked at scheduler
// visible checkpoints (before/after each step, inside poll loops).
type CancelToken struct {
	ch     chan struct{}
	once   sync.Once
	reason string
	mu     sync.Mutex
}

// NewCancelToken creates an unfired cancellation token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel fires the token with a reason; idempotent.
func (t *CancelToken) Cancel(reason string) {
	t.once.Do(func() {
		t.mu.Lock()
		t.reason = reason
		t.mu.Unlock()
		close(t.ch)
	})
}

// Cancelled reports whether the token has fired.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token fires, for use in selects.
func (t *CancelToken) Done() <-chan struct{} {
	return t.ch
}

// Reason returns the cancellation reason, if any.
func (t *CancelToken) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
