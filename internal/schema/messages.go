package schema

// Messages is the ordered transcript of turns exchanged with the model.
// It owns typed append methods so callers never construct raw maps.
// The transcript is append-only; nothing here persists beyond the process.
type Messages struct {
	Messages []Message
}

// NewMessages returns a Messages initialised with the given turns.
// Called with no arguments it returns an empty transcript ready for use.
func NewMessages(msgs ...Message) Messages {
	if len(msgs) == 0 {
		return Messages{Messages: make([]Message, 0)}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Messages{Messages: out}
}

// AddSystem appends a system message.
func (mh *Messages) AddSystem(content string) {
	mh.Messages = append(mh.Messages, Message{
		Role:    "system",
		Content: content,
	})
}

// AddUser appends a user message.
func (mh *Messages) AddUser(content string) {
	mh.Messages = append(mh.Messages, Message{
		Role:    "user",
		Content: content,
	})
}

// AddAssistant appends an assistant message with optional tool calls.
func (mh *Messages) AddAssistant(content *string, toolCalls []ToolCall) {
	mh.Messages = append(mh.Messages, Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResult appends a successful tool-result message.
func (mh *Messages) AddToolResult(toolCallID, toolName, provider, result string) {
	mh.Messages = append(mh.Messages, Message{
		Role:       "tool",
		Content:    result,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Provider:   provider,
	})
}

// AddToolError appends a failure tool-result message. The failure text is
// delivered to the model as ordinary tool output; IsError only marks the
// turn in the transcript.
func (mh *Messages) AddToolError(toolCallID, toolName, provider, errText string) {
	mh.Messages = append(mh.Messages, Message{
		Role:       "tool",
		Content:    errText,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Provider:   provider,
		IsError:    true,
	})
}

// Len returns the number of turns in the transcript.
func (mh *Messages) Len() int { return len(mh.Messages) }

// Clone returns a copy of mh with an independent backing slice.
func (mh *Messages) Clone() Messages {
	cloned := make([]Message, len(mh.Messages))
	copy(cloned, mh.Messages)
	return Messages{Messages: cloned}
}
