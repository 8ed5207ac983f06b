package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harborseal/harborseal/internal/schema"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", srv.URL, "gpt-4o-mini", "text-embedding-3-small")
}

func TestChatSendsToolsWhenOffered(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Write([]byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}]}`))
	})

	msgs := schema.NewMessages()
	msgs.AddUser("hello")
	tools := []map[string]any{schema.ToolDefinition{Name: "answer"}.ToWireMap()}

	if _, err := client.Chat(context.Background(), msgs, tools, schema.ChatOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured["tool_choice"] != "auto" {
		t.Errorf("expected tool_choice auto, got %v", captured["tool_choice"])
	}
	if captured["model"] != "gpt-4o-mini" {
		t.Errorf("expected default model, got %v", captured["model"])
	}
	if captured["max_tokens"] != float64(1000) {
		t.Errorf("expected default max_tokens 1000, got %v", captured["max_tokens"])
	}

	// Second round offers no tools at all.
	captured = nil
	if _, err := client.Chat(context.Background(), msgs, nil, schema.ChatOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := captured["tools"]; ok {
		t.Errorf("expected no tools field when none offered")
	}
}

func TestChatParsesToolCallsRaw(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[
			{"id":"call-1","function":{"name":"answer","arguments":"{\"question\":\"hi\"}"}},
			{"id":"call-2","function":{"name":"answer","arguments":"{\"question\": truncated"}}
		]},"finish_reason":"tool_calls"}]}`))
	})

	resp, err := client.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.HasToolCalls() || len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %+v", resp.ToolCalls)
	}
	if resp.Content != nil {
		t.Errorf("expected nil content for tool-call-only response")
	}
	if string(resp.ToolCalls[0].Arguments) != `{"question":"hi"}` {
		t.Errorf("expected raw arguments preserved, got %s", resp.ToolCalls[0].Arguments)
	}
	// Malformed payloads must come through untouched, not repaired to {}.
	if string(resp.ToolCalls[1].Arguments) != `{"question": truncated` {
		t.Errorf("expected malformed arguments preserved verbatim, got %s", resp.ToolCalls[1].Arguments)
	}
}

func TestChatHTTPErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	})
	_, err := client.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})
	if err == nil {
		t.Fatalf("expected error for HTTP 429")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("expected friendly rate-limit message, got %v", err)
	}

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend exploded"))
	})
	_, err = client.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})
	if err == nil || !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("expected body in error, got %v", err)
	}
}

func TestChatWiresToolResultMessages(t *testing.T) {
	var captured map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Write([]byte(`{"choices":[{"message":{"content":"done"},"finish_reason":"stop"}]}`))
	})

	msgs := schema.NewMessages()
	msgs.AddUser("q")
	text := "using a tool"
	msgs.AddAssistant(&text, []schema.ToolCall{{ID: "call-1", Name: "answer", Arguments: json.RawMessage(`{"question":"q"}`)}})
	msgs.AddToolResult("call-1", "answer", "rag", "the answer")

	if _, err := client.Chat(context.Background(), msgs, nil, schema.ChatOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wire := captured["messages"].([]any)
	if len(wire) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(wire))
	}
	toolMsg := wire[2].(map[string]any)
	if toolMsg["tool_call_id"] != "call-1" || toolMsg["name"] != "answer" {
		t.Errorf("tool result wiring wrong: %v", toolMsg)
	}
	assistantMsg := wire[1].(map[string]any)
	calls := assistantMsg["tool_calls"].([]any)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	if fn["arguments"] != `{"question":"q"}` {
		t.Errorf("expected raw argument string on the wire, got %v", fn["arguments"])
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Deliberately shuffled.
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.4,0.5]},
			{"index":0,"embedding":[0.1,0.2]}
		]}`))
	})

	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vecs[0][0] != 0.1 || vecs[1][0] != 0.4 {
		t.Errorf("expected vectors in input order, got %v", vecs)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	})
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected count mismatch error")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty input")
	})
	vecs, err := client.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("expected nil, nil for empty input, got %v, %v", vecs, err)
	}
}
