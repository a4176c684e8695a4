package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTimeout means the model did not answer within the attempt's budget.
	ErrTimeout = errors.New("model call timed out")
	// ErrProviderFailed means both the primary and the fallback attempt failed.
	ErrProviderFailed = errors.New("model provider failed")
	// ErrParseFailed means the model answered but no JSON object could be read from it.
	ErrParseFailed = errors.New("model output is not a JSON object")
)

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Usage is the provider's token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// CompletionResponse is the provider's answer.
type CompletionResponse struct {
	Text  string
	Usage *Usage
	// Model is the model name reported by the provider, if any.
	Model string
}

// Client is an abstraction over LLM providers
type Client interface {
	// Complete runs a single completion. It must honor ctx cancellation.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Close releases any resources held by the client
	Close() error
}

// ClientOptions configures provider construction.
type ClientOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, provider Provider, opts ClientOptions) (Client, error) {
	switch provider {
	case ProviderOpenAI, "":
		return NewOpenAIClient(opts)
	case ProviderGemini:
		return NewGeminiClient(ctx, opts.APIKey)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", provider)
	}
}
