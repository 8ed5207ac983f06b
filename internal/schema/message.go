package schema

import "encoding/json"

// ToolCall represents one tool invocation requested by an assistant message.
// Arguments hold the raw JSON payload exactly as the model produced it;
// decoding and schema validation happen at dispatch time, not here.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
// Used by provider implementations when building the JSON request body.
func (tc ToolCall) ToWireMap() map[string]any {
	args := string(tc.Arguments)
	if args == "" {
		args = "{}"
	}
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": args,
		},
	}
}

// Message is one turn in the conversation transcript.
//
// Role is one of: "system", "user", "assistant", "tool".
//
// Content holds the turn text:
//   - system / user / tool: plain string
//   - assistant: *string (may be nil when only tool calls are present)
//
// ToolCalls is populated for assistant messages that request invocations.
// ToolCallID, ToolName and Provider are set for tool-result messages;
// Provider records which connected provider served (or failed) the call.
// IsError marks a synthesized failure result; it is transcript-only and
// never sent to the model.
type Message struct {
	Role       string
	Content    any // string | *string
	ToolCalls  []ToolCall
	ToolCallID string // "tool" role only
	ToolName   string // "tool" role only
	Provider   string // "tool" role only
	IsError    bool   // "tool" role only; not sent to the model
}

// Text returns the turn content as plain text, whichever concrete type
// Content carries. Nil assistant content yields "".
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case *string:
		if c != nil {
			return *c
		}
	}
	return ""
}

func NewSystemMessage(content string) Message {
	return Message{
		Role:    "system",
		Content: content,
	}
}

func NewUserMessage(content string) Message {
	return Message{
		Role:    "user",
		Content: content,
	}
}

func NewAssistantMessage(content *string, toolCalls []ToolCall) Message {
	return Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	}
}
