package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string // Model name (e.g., "gpt-4o", "claude-sonnet-4-5-20250514")
}

// Message represents a conversation message.
// Messages preserve the order in which they are appended.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Request contains the ordered messages for a chat completion.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature *float64 // nil = model default, explicit 0 = deterministic
}

// Response contains the complete (non-streamed) result.
type Response struct {
	Content          string
	FinishReason     string // "stop", "length"
	PromptTokens     int
	CompletionTokens int
}

// Chunk is a single fragment of a streamed completion.
// The channel closes after the chunk with Done set; Err is non-nil when the
// stream failed mid-flight.
type Chunk struct {
	Token string
	Done  bool
	Err   error
}

// ChatClient sends chat completion requests to a provider.
type ChatClient interface {
	// Complete sends the request and blocks until the full response arrives.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Stream sends the request and returns a channel of token chunks.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	Model() string
}

// NewChatClient creates a ChatClient for the configured provider.
// Defaults to OpenAI if no provider is specified.
func NewChatClient(cfg Config) (ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// Temp returns a pointer to t, for setting Request.Temperature inline.
func Temp(t float64) *float64 {
	return &t
}

// IsRetryable reports whether an LLM call failure is worth retrying.
// Rate limits, server errors and network errors are retryable; client errors
// and cancelled contexts are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return retryableStatus(ctx, openaiErr.StatusCode)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(ctx, anthropicErr.StatusCode)
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}

func retryableStatus(ctx context.Context, statusCode int) bool {
	switch {
	case statusCode == 429:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", statusCode)
		return true
	case statusCode >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", statusCode)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", statusCode)
		return false
	}
}
