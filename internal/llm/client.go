package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message represents a chat message in the unified format shared by all
// provider adapters.
type Message struct {
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	ToolCalls []map[string]interface{} `json:"tool_calls,omitempty"`
	ToolID    string                   `json:"tool_id,omitempty"`
	ToolName  string                   `json:"tool_name,omitempty"`

	// Synthetic marks system-authored user messages used to feed fallback
	// tool results back to the model. The UI hides them; providers see them.
	Synthetic bool `json:"synthetic,omitempty"`
}

// ToolCall is a structured tool invocation recovered from a model reply,
// either natively or by the fallback parser.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// CompletionRequest represents a completion request. Sampling parameters are
// pointers so that "unset" never overrides a provider default.
type CompletionRequest struct {
	Messages     []*Message               `json:"messages"`
	Tools        []map[string]interface{} `json:"tools,omitempty"`
	Temperature  *float64                 `json:"temperature,omitempty"`
	TopP         *float64                 `json:"top_p,omitempty"`
	MaxTokens    int                      `json:"max_tokens,omitempty"`
	SystemPrompt string                   `json:"system_prompt,omitempty"`
}

// CompletionResponse represents a completion response
type CompletionResponse struct {
	Content    string                   `json:"content"`
	ToolCalls  []map[string]interface{} `json:"tool_calls,omitempty"`
	StopReason string                   `json:"stop_reason"`
	Usage      map[string]interface{}   `json:"usage,omitempty"`
}

// Client is the uniform adapter contract over heterogeneous LLM backends.
// Streaming adapters must still return the assembled message; streaming is
// purely a progress affordance.
type Client interface {
	// CompleteWithRequest sends a completion request and returns the response
	CompleteWithRequest(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	// Complete is a simplified version for single prompt
	Complete(ctx context.Context, prompt string) (string, error)
	// Stream sends a streaming completion request, invoking onToken per chunk
	Stream(ctx context.Context, req *CompletionRequest, onToken func(chunk string) error) (*CompletionResponse, error)
	// GetModelName returns the model name
	GetModelName() string
}

// Known provider identifiers.
const (
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenAICompatible = "openai-compatible"
	ProviderOllama           = "ollama"
)

// NewClient constructs the adapter for the given provider identifier.
// baseURL is only consulted by local backends.
func NewClient(provider, model, apiKey, baseURL string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	case ProviderOpenAICompatible, "lmstudio", "localai":
		return NewOpenAICompatibleClient(apiKey, baseURL, model), nil
	case ProviderOllama:
		return NewOllamaClient(baseURL, model)
	default:
		return nil, fmt.Errorf("unknown provider: %q", provider)
	}
}

// IsLocalProvider reports whether the provider runs on the user's machine,
// which warrants the longer request timeout.
func IsLocalProvider(provider string) bool {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOllama, ProviderOpenAICompatible, "lmstudio", "localai":
		return true
	default:
		return false
	}
}
