package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsProvider wraps a Provider with call counting and latency
// tracking. The snapshot is exposed on the server's health endpoint.
type MetricsProvider struct {
	provider Provider
	name     string

	totalCalls   int64
	totalErrors  int64
	promptTokens int64
	replyTokens  int64

	mu           sync.RWMutex
	totalLatency time.Duration
	maxLatency   time.Duration
}

// MetricsSnapshot is a point-in-time copy of the collected counters.
type MetricsSnapshot struct {
	Provider     string        `json:"provider"`
	Calls        int64         `json:"calls"`
	Errors       int64         `json:"errors"`
	PromptTokens int64         `json:"prompt_tokens"`
	ReplyTokens  int64         `json:"reply_tokens"`
	AvgLatency   time.Duration `json:"avg_latency"`
	MaxLatency   time.Duration `json:"max_latency"`
}

// NewMetricsProvider wraps a provider with metrics collection.
func NewMetricsProvider(provider Provider) *MetricsProvider {
	return &MetricsProvider{
		provider: provider,
		name:     provider.Name(),
	}
}

// Chat delegates to the wrapped provider and records the outcome.
func (m *MetricsProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := m.provider.Chat(ctx, req)
	latency := time.Since(start)

	atomic.AddInt64(&m.totalCalls, 1)
	if err != nil {
		atomic.AddInt64(&m.totalErrors, 1)
	} else {
		atomic.AddInt64(&m.promptTokens, int64(resp.PromptTokens))
		atomic.AddInt64(&m.replyTokens, int64(resp.ReplyTokens))
	}

	m.mu.Lock()
	m.totalLatency += latency
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	m.mu.Unlock()

	return resp, err
}

// Name returns the wrapped provider's identifier.
func (m *MetricsProvider) Name() string {
	return m.name
}

// Available delegates to the wrapped provider.
func (m *MetricsProvider) Available() bool {
	return m.provider.Available()
}

// Snapshot returns a copy of the current counters.
func (m *MetricsProvider) Snapshot() MetricsSnapshot {
	calls := atomic.LoadInt64(&m.totalCalls)

	m.mu.RLock()
	total := m.totalLatency
	max := m.maxLatency
	m.mu.RUnlock()

	var avg time.Duration
	if calls > 0 {
		avg = total / time.Duration(calls)
	}
	return MetricsSnapshot{
		Provider:     m.name,
		Calls:        calls,
		Errors:       atomic.LoadInt64(&m.totalErrors),
		PromptTokens: atomic.LoadInt64(&m.promptTokens),
		ReplyTokens:  atomic.LoadInt64(&m.replyTokens),
		AvgLatency:   avg,
		MaxLatency:   max,
	}
}
