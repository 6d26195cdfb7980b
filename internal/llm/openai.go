package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// /chat/completions endpoint, including the Hugging Face router.
type OpenAIProvider struct {
	baseProvider
}

// NewOpenAIProvider creates an adapter for an OpenAI-compatible
// backend. providerName distinguishes "openai" from "hf-router" in
// config and logs; the wire protocol is identical.
func NewOpenAIProvider(cfg *Config, providerName string) *OpenAIProvider {
	if providerName == "" {
		providerName = "openai"
	}
	return &OpenAIProvider{
		baseProvider: newBaseProvider(cfg, providerName),
	}
}

// Available reports whether an API key is configured.
func (p *OpenAIProvider) Available() bool {
	return p.config.APIKey != ""
}

// Chat sends a completion request. The finish_reason field maps to the
// FinishSignal enum: "length" is the truncation signal the continuation
// loop watches for.
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("%w: set an API key for provider %q", ErrMissingCredential, p.config.Name)
	}

	start := time.Now()
	model, maxTokens, temperature, topP := p.fillRequestDefaults(req)

	apiReq := openAIChatRequest{
		Model:       model,
		Messages:    make([]Message, 0, len(req.Messages)),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
	apiReq.Messages = append(apiReq.Messages, req.Messages...)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrBackendUnavailable, p.config.Name, resp.StatusCode, string(bodyBytes))
	}

	var apiResp openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackendProtocol, err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrBackendProtocol)
	}

	choice := apiResp.Choices[0]
	log.Debug().
		Str("provider", p.config.Name).
		Str("model", apiResp.Model).
		Str("finish_reason", choice.FinishReason).
		Dur("duration", time.Since(start)).
		Msg("chat completion")

	return &ChatResponse{
		Content:      choice.Message.Content,
		Model:        apiResp.Model,
		Finish:       signalFromFinishReason(choice.FinishReason),
		FinishReason: choice.FinishReason,
		PromptTokens: apiResp.Usage.PromptTokens,
		ReplyTokens:  apiResp.Usage.CompletionTokens,
		Duration:     time.Since(start),
	}, nil
}

// signalFromFinishReason normalizes the OpenAI-style finish_reason into
// the FinishSignal enum.
func signalFromFinishReason(reason string) FinishSignal {
	switch reason {
	case "length":
		return FinishTruncated
	case "stop", "eos", "end_turn":
		return FinishComplete
	default:
		return FinishUnknown
	}
}

// OpenAI wire types.
type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

type openAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
