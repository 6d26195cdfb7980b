package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/typhoon/internal/conversation"
	"github.com/normanking/typhoon/internal/knowledge"
	"github.com/normanking/typhoon/internal/llm"
	"github.com/normanking/typhoon/internal/persona"
)

// scriptProvider replays a fixed sequence of responses and records every
// request it receives.
type scriptProvider struct {
	script   []llm.ChatResponse
	err      error
	calls    int
	requests []*llm.ChatRequest
}

func (s *scriptProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	resp := s.script[idx]
	return &resp, nil
}

func (s *scriptProvider) Name() string    { return "script" }
func (s *scriptProvider) Available() bool { return true }

func newTestEngine(p llm.Provider) *Engine {
	return NewEngine(p, conversation.NewHistory(), persona.Default(), knowledge.Base{}, DefaultOptions())
}

func TestRespondSingleRound(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "The Typhoon is a twin-engine delta-canard fighter.", Finish: llm.FinishComplete},
	}}
	engine := newTestEngine(provider)

	reply, err := engine.Respond(context.Background(), "What is the Typhoon?")
	require.NoError(t, err)

	assert.Equal(t, "The Typhoon is a twin-engine delta-canard fighter.", reply)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 2, engine.History().Len())
}

func TestRespondContinuation(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "Hello", Finish: llm.FinishTruncated, FinishReason: "length"},
		{Content: "world.", Finish: llm.FinishComplete, FinishReason: "stop"},
	}}
	engine := newTestEngine(provider)

	reply, err := engine.Respond(context.Background(), "Say hello world slowly")
	require.NoError(t, err)

	assert.Equal(t, "Hello\n\nworld.", reply)
	assert.Equal(t, 2, provider.calls)

	// The second request carries the partial reply and the continue
	// directive at the tail of the transcript.
	second := provider.requests[1]
	n := len(second.Messages)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, "assistant", second.Messages[n-2].Role)
	assert.Equal(t, "Hello", second.Messages[n-2].Content)
	assert.Equal(t, "user", second.Messages[n-1].Role)
	assert.Equal(t, "continue", second.Messages[n-1].Content)
}

func TestRespondRoundLimitAdvisory(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "part", Finish: llm.FinishTruncated, FinishReason: "length"},
	}}
	engine := newTestEngine(provider)

	reply, err := engine.Respond(context.Background(), "Tell me everything")
	require.NoError(t, err)

	// Four rounds total, then the advisory.
	assert.Equal(t, 4, provider.calls)
	assert.Equal(t, "part\n\npart\n\npart\n\npart"+truncationAdvisory, reply)
}

func TestRespondEmptyRoundsFallback(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "   ", Finish: llm.FinishComplete},
	}}
	engine := newTestEngine(provider)

	reply, err := engine.Respond(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)

	// The fallback still counts as a completed exchange.
	assert.Equal(t, 2, engine.History().Len())
}

func TestRespondEmptyPrompt(t *testing.T) {
	provider := &scriptProvider{}
	engine := newTestEngine(provider)

	_, err := engine.Respond(context.Background(), "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, 0, engine.History().Len())
}

func TestRespondProviderErrorLeavesHistory(t *testing.T) {
	provider := &scriptProvider{err: errors.New("backend down")}
	engine := newTestEngine(provider)

	engineHistory := engine.History()
	engineHistory.AppendExchange("earlier question", "earlier answer")

	_, err := engine.Respond(context.Background(), "Hi")
	require.Error(t, err)
	assert.Equal(t, 2, engineHistory.Len())
}

func TestRespondNormalizesMarkdown(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "## Heading\n- **Bold** point\n- `code` word", Finish: llm.FinishComplete},
	}}
	engine := newTestEngine(provider)

	reply, err := engine.Respond(context.Background(), "Format test")
	require.NoError(t, err)
	assert.Equal(t, "Heading\nBold point\ncode word", reply)
}

func TestBuildMessagesOrder(t *testing.T) {
	kb, err := knowledge.Load("")
	require.NoError(t, err)

	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "ok", Finish: llm.FinishComplete},
	}}
	history := conversation.NewHistory()
	for i := 0; i < 5; i++ {
		history.AppendExchange("q", "a")
	}
	engine := NewEngine(provider, history, persona.Default(), kb, Options{MaxHistoryPairs: 3})

	_, err = engine.Respond(context.Background(), "latest question")
	require.NoError(t, err)

	msgs := provider.requests[0].Messages
	// System prompt, 3 pairs of history, then the new prompt.
	require.Len(t, msgs, 1+6+1)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Typhoon")
	for i := 1; i < 7; i++ {
		want := "user"
		if i%2 == 0 {
			want = "assistant"
		}
		assert.Equal(t, want, msgs[i].Role)
	}
	assert.Equal(t, "latest question", msgs[7].Content)
}

func TestBuildMessagesSkipsEmptyKnowledge(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "ok", Finish: llm.FinishComplete},
	}}
	engine := NewEngine(provider, conversation.NewHistory(), persona.Default(), knowledge.Base{}, Options{})

	_, err := engine.Respond(context.Background(), "Hi")
	require.NoError(t, err)

	// Empty knowledge base adds no system message.
	msgs := provider.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestBuildMessagesIncludesKnowledge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Max speed Mach 2.0."), 0o644))
	kb, err := knowledge.Load(path)
	require.NoError(t, err)

	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "ok", Finish: llm.FinishComplete},
	}}
	engine := NewEngine(provider, conversation.NewHistory(), persona.Default(), kb, Options{})

	_, err = engine.Respond(context.Background(), "How fast is it?")
	require.NoError(t, err)

	msgs := provider.requests[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Max speed Mach 2.0.")
}

func TestRespondUnknownFinishStops(t *testing.T) {
	provider := &scriptProvider{script: []llm.ChatResponse{
		{Content: "partial thought", Finish: llm.FinishUnknown},
	}}
	engine := newTestEngine(provider)

	reply, err := engine.Respond(context.Background(), "Hi")
	require.NoError(t, err)

	// Unknown finish ends the loop without the advisory.
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "partial thought", reply)
}
