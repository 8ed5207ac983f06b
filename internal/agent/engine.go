package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/harborseal/harborseal/internal/args"
	"github.com/harborseal/harborseal/internal/schema"
	"github.com/harborseal/harborseal/internal/shared/textutil"
)

const noResponseFallback = "I've completed processing but have no response to give."

// Engine drives one dispatch round per user query: a model call with the
// live tool catalogue, a strictly sequential pass over every requested
// invocation, then a closing model call with no tools offered.
type Engine struct {
	model      schema.ModelClient
	dispatcher schema.ToolDispatcher
	opts       schema.ChatOptions
}

// NewEngine wires the engine to its model client and tool dispatcher.
func NewEngine(model schema.ModelClient, dispatcher schema.ToolDispatcher, opts schema.ChatOptions) *Engine {
	return &Engine{
		model:      model,
		dispatcher: dispatcher,
		opts:       opts,
	}
}

// Run executes one round against the session transcript and returns the
// final answer text. Every turn produced this round stays in the transcript
// for the next call. onProgress, when non-nil, receives intermediate
// narration (partial text, tool hints) while the round is in flight.
func (e *Engine) Run(ctx context.Context, sess *Session, query string, onProgress func(string)) (string, error) {
	transcript := sess.Transcript()
	transcript.AddUser(query)

	// The catalogue is re-fetched fresh each round so it reflects the live
	// provider set.
	catalogue := e.dispatcher.Catalogue(ctx)
	var wireTools []map[string]any
	if len(catalogue) > 0 {
		wireTools = make([]map[string]any, 0, len(catalogue))
		for _, def := range catalogue {
			wireTools = append(wireTools, def.ToWireMap())
		}
	}

	resp, err := e.model.Chat(ctx, *transcript, wireTools, e.opts)
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}

	if !resp.HasToolCalls() {
		final := finalText(resp.Content)
		transcript.AddAssistant(&final, nil)
		return final, nil
	}

	if onProgress != nil {
		if resp.Content != nil {
			if clean := strings.TrimSpace(textutil.StripThink(*resp.Content)); clean != "" {
				onProgress(clean)
			}
		}
		onProgress(textutil.ToolHint(resp.ToolCalls))
	}

	calls := normaliseCalls(resp.ToolCalls)
	transcript.AddAssistant(resp.Content, calls)

	// Sequential, in the order the model issued them. A failed invocation
	// becomes an error result turn; the round never aborts early, and every
	// request ends with exactly one result turn.
	for _, tc := range calls {
		e.dispatch(ctx, transcript, catalogue, tc)
	}

	finalResp, err := e.model.Chat(ctx, *transcript, nil, e.opts)
	if err != nil {
		return "", fmt.Errorf("closing model call: %w", err)
	}

	final := finalText(finalResp.Content)
	transcript.AddAssistant(&final, nil)

	slog.Info("Round complete", "tools", len(calls), "length", len(final))
	return final, nil
}

// dispatch resolves, validates and invokes one tool call, appending exactly
// one result turn whatever the outcome.
func (e *Engine) dispatch(ctx context.Context, transcript *schema.Messages, catalogue []schema.ToolDefinition, tc schema.ToolCall) {
	providerID, ok := e.dispatcher.Resolve(tc.Name)
	if !ok {
		slog.Warn("Tool not routed", "tool", tc.Name)
		transcript.AddToolError(tc.ID, tc.Name, "",
			fmt.Sprintf("Error: tool %q is not provided by any connected provider", tc.Name))
		return
	}

	val, err := args.Decode(tc.Arguments)
	if err == nil {
		err = args.Validate(val, schemaFor(catalogue, tc.Name))
	}
	if err != nil {
		slog.Warn("Tool arguments rejected", "tool", tc.Name, "provider", providerID, "error", err)
		transcript.AddToolError(tc.ID, tc.Name, providerID,
			fmt.Sprintf("Error: invalid arguments for %s: %v", tc.Name, err))
		return
	}

	slog.Info("Tool call",
		"tool", tc.Name,
		"provider", providerID,
		"args", textutil.Truncate(string(tc.Arguments), 200),
	)

	result, err := e.dispatcher.Invoke(ctx, providerID, tc.Name, val.ObjectMap())
	if err != nil {
		slog.Warn("Tool invocation failed", "tool", tc.Name, "provider", providerID, "error", err)
		transcript.AddToolError(tc.ID, tc.Name, providerID, fmt.Sprintf("Error: %v", err))
		return
	}

	transcript.AddToolResult(tc.ID, tc.Name, providerID, result)
}

// normaliseCalls fills in missing invocation ids so every result turn can
// be tied back to its request.
func normaliseCalls(calls []schema.ToolCall) []schema.ToolCall {
	out := make([]schema.ToolCall, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = "call-" + uuid.NewString()
		}
	}
	return out
}

func schemaFor(catalogue []schema.ToolDefinition, name string) json.RawMessage {
	for _, def := range catalogue {
		if def.Name == name {
			return def.InputSchema
		}
	}
	return nil
}

func finalText(content *string) string {
	text := ""
	if content != nil {
		text = *content
	}
	text = strings.TrimSpace(textutil.StripThink(text))
	return textutil.StringOrDefault(text, noResponseFallback)
}
