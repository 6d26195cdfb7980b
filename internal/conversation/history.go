// Package conversation holds the in-memory conversation history and the
// bounded context window read from it. History lives for the process
// lifetime only; nothing is persisted.
package conversation

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation. The role is stored
// explicitly rather than inferred from position, so a corrupted or
// odd-length sequence can never silently invert role assignment.
type Turn struct {
	Role    Role
	Content string
}

// History is an append-only sequence of turns shared by the whole
// process. Turns are only ever appended in user/assistant pairs, so the
// length is even after every completed exchange. Safe for concurrent
// use.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// AppendExchange records one completed exchange: the user prompt and
// the assistant reply, appended atomically. This is the only mutation
// History exposes, which keeps the even-length invariant by
// construction.
func (h *History) AppendExchange(prompt, reply string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns,
		Turn{Role: RoleUser, Content: prompt},
		Turn{Role: RoleAssistant, Content: reply},
	)
}

// Recent returns the last maxPairs exchanges (maxPairs*2 turns), or the
// whole history if it is shorter. Order is preserved and the returned
// slice is a copy; callers cannot alias internal state.
func (h *History) Recent(maxPairs int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if maxPairs <= 0 {
		return nil
	}
	n := maxPairs * 2
	start := len(h.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear drops all stored turns.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
