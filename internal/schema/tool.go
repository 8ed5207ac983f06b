package schema

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes one callable tool as advertised by the provider
// that serves it. InputSchema carries the provider's declared JSON Schema
// verbatim; it is forwarded to the model unchanged and parsed only when
// arguments are validated.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToWireMap serialises the definition into the OpenAI function-tool map
// offered to the model.
func (td ToolDefinition) ToWireMap() map[string]any {
	params := td.InputSchema
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        td.Name,
			"description": td.Description,
			"parameters":  params,
		},
	}
}

// ToolDispatcher routes and executes tool invocations against the set of
// connected providers. The hub implements it; the dispatch loop consumes it.
type ToolDispatcher interface {
	// Catalogue returns the merged live tool definitions across all
	// connected providers, refreshed from each provider on every call.
	Catalogue(ctx context.Context) []ToolDefinition
	// Resolve maps a tool name to the id of the provider that serves it.
	Resolve(name string) (string, bool)
	// Invoke executes one call on the named provider and returns the
	// textual tool output.
	Invoke(ctx context.Context, providerID, name string, args map[string]any) (string, error)
}
