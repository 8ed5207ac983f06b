package schema

import "context"

// ChatOptions configures a single model chat request.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// LLMResponse is the normalised response from the model service.
type LLMResponse struct {
	Content      *string // nil when the response contains only tool calls
	ToolCalls    []ToolCall
	FinishReason string
	Usage        map[string]int // "input_tokens", "output_tokens"
}

// HasToolCalls reports whether the response requests at least one invocation.
func (r LLMResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// ModelClient is the boundary to the external model service. tools is the
// wire-format catalogue built with ToolDefinition.ToWireMap; pass nil to
// offer no tools.
type ModelClient interface {
	Chat(ctx context.Context, messages Messages, tools []map[string]any, opts ChatOptions) (LLMResponse, error)
	DefaultModel() string
}

// Embedder turns text passages into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

func NewChatOptions(model string, maxTokens int, temperature float64) ChatOptions {
	return ChatOptions{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}
