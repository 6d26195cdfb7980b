// Package llm provides chat-completion backends for Typhoon.
// Two transports are supported: an OpenAI-compatible router (Hugging
// Face router, OpenAI itself, any /chat/completions endpoint) and a
// local Ollama server. The orchestration engine is written once against
// the Provider interface and does not care which one is plugged in.
package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// MaxErrorBodySize limits how much of an error response body is read,
// so a malformed backend cannot exhaust memory.
const MaxErrorBodySize = 1 * 1024 * 1024

// Backend failure classes. Adapters wrap the underlying cause with one
// of these sentinels so callers can classify with errors.Is.
var (
	// ErrMissingCredential means the provider requires an API key and
	// none was configured.
	ErrMissingCredential = errors.New("llm: missing credential")

	// ErrBackendUnavailable covers transport failures: connection
	// refused, timeout, non-2xx status.
	ErrBackendUnavailable = errors.New("llm: backend unavailable")

	// ErrBackendProtocol covers structurally invalid responses, such
	// as an unparseable body or a choices list with no entries.
	ErrBackendProtocol = errors.New("llm: malformed backend response")
)

// FinishSignal is the normalized view of why generation stopped.
type FinishSignal string

const (
	// FinishComplete means the model ended its reply naturally.
	FinishComplete FinishSignal = "complete"
	// FinishTruncated means generation hit the token budget and the
	// reply is cut short.
	FinishTruncated FinishSignal = "truncated"
	// FinishUnknown means the backend gave no usable finish reason.
	FinishUnknown FinishSignal = "unknown"
)

// Provider is the interface the continuation engine calls.
type Provider interface {
	// Chat sends one completion request and returns the normalized
	// response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider identifier.
	Name() string

	// Available reports whether the provider is configured well enough
	// to accept requests.
	Available() bool
}

// Message is a single (role, content) pair sent to the backend.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	// Model overrides the provider's configured default when set.
	Model string

	// Messages in prompt order: system first, then history, then the
	// new user turn.
	Messages []Message

	// MaxTokens bounds the reply length for this call.
	MaxTokens int

	// Temperature and TopP fall back to provider defaults when zero.
	Temperature float64
	TopP        float64
}

// ChatResponse is the adapter's normalized view of a backend reply.
// Empty content is valid; the engine substitutes its own fallback text.
type ChatResponse struct {
	Content      string
	Model        string
	Finish       FinishSignal
	FinishReason string // raw backend value, for logging
	PromptTokens int
	ReplyTokens  int
	Duration     time.Duration
}

// Config holds the settings shared by all providers.
type Config struct {
	// Name identifies the provider ("hf-router", "openai", "ollama").
	Name string

	// Endpoint is the API base URL.
	Endpoint string

	// APIKey authenticates against hosted backends. Ollama ignores it.
	APIKey string

	// Model is the default model identifier.
	Model string

	// MaxTokens is the default per-call reply budget.
	MaxTokens int

	// Temperature and TopP are the default sampling parameters.
	Temperature float64
	TopP        float64

	// Timeout bounds the whole HTTP exchange. Expiry surfaces as
	// ErrBackendUnavailable.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a named provider.
func DefaultConfig(name string) *Config {
	switch name {
	case "hf-router":
		return &Config{
			Name:        "hf-router",
			Endpoint:    "https://router.huggingface.co/v1",
			Model:       "google/gemma-2-2b-it",
			MaxTokens:   900,
			Temperature: 0.35,
			TopP:        0.9,
			Timeout:     2 * time.Minute,
		}
	case "openai":
		return &Config{
			Name:        "openai",
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   900,
			Temperature: 0.35,
			TopP:        0.9,
			Timeout:     2 * time.Minute,
		}
	case "ollama":
		return &Config{
			Name:        "ollama",
			Endpoint:    "http://127.0.0.1:11434",
			Model:       "llama3",
			MaxTokens:   900,
			Temperature: 0.35,
			TopP:        0.9,
			Timeout:     3 * time.Minute, // local cold starts are slow
		}
	default:
		return &Config{
			Name:        name,
			MaxTokens:   900,
			Temperature: 0.35,
			TopP:        0.9,
			Timeout:     2 * time.Minute,
		}
	}
}

// baseProvider carries the config and HTTP client shared by the
// HTTP-based adapters.
type baseProvider struct {
	config *Config
	client *http.Client
}

func newBaseProvider(cfg *Config, providerName string) baseProvider {
	if cfg == nil {
		cfg = DefaultConfig(providerName)
	}

	defaults := DefaultConfig(providerName)
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = defaults.TopP
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	cfg.Name = providerName

	return baseProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (b *baseProvider) Name() string {
	return b.config.Name
}

// readLimitedBody reads up to maxBytes from r, for error reporting.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// fillRequestDefaults applies per-provider defaults to a request.
func (b *baseProvider) fillRequestDefaults(req *ChatRequest) (model string, maxTokens int, temperature, topP float64) {
	model = req.Model
	if model == "" {
		model = b.config.Model
	}
	maxTokens = req.MaxTokens
	if maxTokens == 0 {
		maxTokens = b.config.MaxTokens
	}
	temperature = req.Temperature
	if temperature == 0 {
		temperature = b.config.Temperature
	}
	topP = req.TopP
	if topP == 0 {
		topP = b.config.TopP
	}
	return model, maxTokens, temperature, topP
}
