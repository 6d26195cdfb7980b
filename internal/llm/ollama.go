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

// OllamaProvider implements Provider against a local Ollama server.
// The Ollama chat API reports no truncation indicator, so every reply
// is normalized to FinishComplete and the continuation loop never runs
// extra rounds against this backend.
type OllamaProvider struct {
	baseProvider
}

// NewOllamaProvider creates an adapter for a local Ollama server.
func NewOllamaProvider(cfg *Config) *OllamaProvider {
	return &OllamaProvider{
		baseProvider: newBaseProvider(cfg, "ollama"),
	}
}

// Available checks that the server answers /api/tags with at least one
// installed model.
func (p *OllamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}
	return len(result.Models) > 0
}

// Chat sends a non-streaming chat request to Ollama.
func (p *OllamaProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	model, maxTokens, temperature, _ := p.fillRequestDefaults(req)

	apiReq := ollamaChatRequest{
		Model:    model,
		Messages: append([]Message(nil), req.Messages...),
		Stream:   false,
	}
	apiReq.Options.Temperature = temperature
	apiReq.Options.NumPredict = maxTokens

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", ErrBackendUnavailable, resp.StatusCode, string(bodyBytes))
	}

	var apiResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrBackendProtocol, err)
	}

	log.Debug().
		Str("provider", "ollama").
		Str("model", apiResp.Model).
		Dur("duration", time.Since(start)).
		Msg("chat completion")

	return &ChatResponse{
		Content: apiResp.Message.Content,
		Model:   apiResp.Model,
		// Ollama has no truncation signal; treat replies as complete.
		Finish:       FinishComplete,
		PromptTokens: apiResp.PromptEvalCount,
		ReplyTokens:  apiResp.EvalCount,
		Duration:     time.Since(start),
	}, nil
}

// Ollama wire types.
type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}
