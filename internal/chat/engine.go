// Package chat orchestrates a single chat exchange: prompt assembly from
// persona, knowledge and recent history, the completion call, and the
// bounded auto-continuation loop that stitches truncated replies back
// together.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/typhoon/internal/conversation"
	"github.com/normanking/typhoon/internal/knowledge"
	"github.com/normanking/typhoon/internal/llm"
	"github.com/normanking/typhoon/internal/persona"
	"github.com/normanking/typhoon/internal/plaintext"
)

// ErrEmptyPrompt is returned when the prompt is empty after trimming.
// No backend call is made in that case.
var ErrEmptyPrompt = errors.New("empty prompt")

const (
	// continueDirective is the literal user message appended to request
	// the rest of a truncated reply.
	continueDirective = "continue"

	// fallbackReply is served when every round produced an empty reply.
	fallbackReply = "I didn't get a usable response that time. Please try again."

	// truncationAdvisory is appended when the reply is still cut short
	// after the final continuation round.
	truncationAdvisory = "\n\nNote: Output may still be cut short. Ask 'continue' again."
)

// Options bound the engine's context window and continuation loop.
type Options struct {
	// MaxHistoryPairs is the number of recent exchanges included in the
	// assembled prompt. Kept small to reduce truncation risk.
	MaxHistoryPairs int

	// MaxRounds is the total completion calls per exchange: the first
	// answer plus up to MaxRounds-1 continuations.
	MaxRounds int

	// ReplyTokens caps the completion length per round.
	ReplyTokens int
}

// DefaultOptions returns the standard window and loop bounds.
func DefaultOptions() Options {
	return Options{
		MaxHistoryPairs: 3,
		MaxRounds:       4,
		ReplyTokens:     900,
	}
}

// Engine runs chat exchanges against a completion provider.
type Engine struct {
	provider llm.Provider
	history  *conversation.History
	persona  *persona.Persona
	kb       knowledge.Base
	opts     Options
}

// NewEngine creates an engine. Zero or negative option fields fall back
// to DefaultOptions values.
func NewEngine(provider llm.Provider, history *conversation.History, p *persona.Persona, kb knowledge.Base, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.MaxHistoryPairs <= 0 {
		opts.MaxHistoryPairs = defaults.MaxHistoryPairs
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = defaults.MaxRounds
	}
	if opts.ReplyTokens <= 0 {
		opts.ReplyTokens = defaults.ReplyTokens
	}
	if p == nil {
		p = persona.Default()
	}
	return &Engine{
		provider: provider,
		history:  history,
		persona:  p,
		kb:       kb,
		opts:     opts,
	}
}

// History exposes the engine's conversation history.
func (e *Engine) History() *conversation.History {
	return e.history
}

// Respond runs one full exchange: it assembles the prompt, calls the
// provider, auto-continues while the backend reports truncation, and
// records the completed exchange in history. Backend errors abort the
// exchange without touching history.
func (e *Engine) Respond(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	start := time.Now()
	messages := e.buildMessages(prompt)

	var parts []string
	finish := llm.FinishUnknown
	rounds := 0

	for round := 0; round < e.opts.MaxRounds; round++ {
		rounds++
		resp, err := e.provider.Chat(ctx, &llm.ChatRequest{
			Messages:  messages,
			MaxTokens: e.opts.ReplyTokens,
		})
		if err != nil {
			return "", err
		}

		reply := plaintext.Normalize(resp.Content)
		finish = resp.Finish

		if reply != "" {
			parts = append(parts, reply)
		}

		if finish != llm.FinishTruncated {
			break
		}

		// Cut short: feed the partial reply back and ask for the rest.
		messages = append(messages,
			llm.Message{Role: string(conversation.RoleAssistant), Content: reply},
			llm.Message{Role: string(conversation.RoleUser), Content: continueDirective},
		)
	}

	reply := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if reply == "" {
		reply = fallbackReply
	}
	if finish == llm.FinishTruncated {
		reply += truncationAdvisory
	}

	e.history.AppendExchange(prompt, reply)

	log.Info().
		Int("rounds", rounds).
		Str("finish", string(finish)).
		Int("reply_chars", len(reply)).
		Dur("duration", time.Since(start)).
		Msg("exchange complete")

	return reply, nil
}

// buildMessages assembles the transcript sent to the provider: persona
// system prompt, optional knowledge notes, the recent history window,
// then the new prompt.
func (e *Engine) buildMessages(prompt string) []llm.Message {
	recent := e.history.Recent(e.opts.MaxHistoryPairs)

	messages := make([]llm.Message, 0, len(recent)+3)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: e.persona.BuildSystemPrompt(),
	})
	if !e.kb.Empty() {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: e.kb.SystemMessage(),
		})
	}
	for _, turn := range recent {
		messages = append(messages, llm.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, llm.Message{
		Role:    string(conversation.RoleUser),
		Content: prompt,
	})
	return messages
}
