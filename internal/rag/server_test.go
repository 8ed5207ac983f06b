package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/harborseal/harborseal/internal/docstore"
)

type serverClient struct {
	t  *testing.T
	w  io.Writer
	sc *bufio.Scanner
}

func startServer(t *testing.T, flow *Flow) *serverClient {
	t.Helper()
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	srv := NewServer(flow, serverIn, serverOut)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		clientOut.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop after shutdown")
		}
	})
	return &serverClient{t: t, w: clientOut, sc: bufio.NewScanner(clientIn)}
}

func (c *serverClient) call(id int64, method string, params any) map[string]any {
	c.t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		c.t.Fatalf("marshal request: %v", err)
	}
	if _, err := fmt.Fprintf(c.w, "%s\n", data); err != nil {
		c.t.Fatalf("write request: %v", err)
	}
	return c.read()
}

func (c *serverClient) send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.w, "%s\n", line); err != nil {
		c.t.Fatalf("write line: %v", err)
	}
}

func (c *serverClient) read() map[string]any {
	c.t.Helper()
	if !c.sc.Scan() {
		c.t.Fatal("no reply from server")
	}
	var resp map[string]any
	if err := json.Unmarshal(c.sc.Bytes(), &resp); err != nil {
		c.t.Fatalf("bad reply %q: %v", c.sc.Text(), err)
	}
	return resp
}

func resultMap(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("reply has no result object: %#v", resp)
	}
	return result
}

func toolText(t *testing.T, resp map[string]any) (string, bool) {
	t.Helper()
	result := resultMap(t, resp)
	blocks, ok := result["content"].([]any)
	if !ok || len(blocks) == 0 {
		t.Fatalf("tool result has no content blocks: %#v", result)
	}
	block, ok := blocks[0].(map[string]any)
	if !ok {
		t.Fatalf("content block is not an object: %#v", blocks[0])
	}
	text, _ := block["text"].(string)
	isErr, _ := result["isError"].(bool)
	return text, isErr
}

func TestServerInitializeHandshake(t *testing.T) {
	flow := newTestFlow(&fakeIndex{has: true}, &fakeModel{answer: "ok"})
	c := startServer(t, flow)

	resp := c.call(1, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "harborseal", "version": "1.0"},
	})
	result := resultMap(t, resp)
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("unexpected protocol version: %v", result["protocolVersion"])
	}
	info, ok := result["serverInfo"].(map[string]any)
	if !ok || info["name"] != "harborseal-rag" {
		t.Errorf("unexpected serverInfo: %#v", result["serverInfo"])
	}

	// The initialized notification takes no reply; the server must stay
	// responsive after it.
	c.send(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	listResp := c.call(2, "tools/list", nil)
	if listResp["id"].(float64) != 2 {
		t.Errorf("reply id mismatch: %v", listResp["id"])
	}
}

func TestServerListsSingleAnswerTool(t *testing.T) {
	flow := newTestFlow(&fakeIndex{has: true}, &fakeModel{answer: "ok"})
	c := startServer(t, flow)

	resp := c.call(1, "tools/list", nil)
	result := resultMap(t, resp)
	toolsAny, ok := result["tools"].([]any)
	if !ok || len(toolsAny) != 1 {
		t.Fatalf("expected exactly one tool, got %#v", result["tools"])
	}
	tool := toolsAny[0].(map[string]any)
	if tool["name"] != "answer" {
		t.Errorf("unexpected tool name: %v", tool["name"])
	}
	schemaMap, ok := tool["inputSchema"].(map[string]any)
	if !ok {
		t.Fatalf("inputSchema missing: %#v", tool)
	}
	required, ok := schemaMap["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "question" {
		t.Errorf("schema should require question, got %#v", schemaMap["required"])
	}
}

func TestServerAnswersQuestion(t *testing.T) {
	index := &fakeIndex{has: true, passages: []docstore.Passage{
		{Content: "the answer is forty-two", SourceFile: "guide.txt"},
	}}
	model := &fakeModel{answer: "42"}
	c := startServer(t, newTestFlow(index, model))

	resp := c.call(1, "tools/call", map[string]any{
		"name":      "answer",
		"arguments": map[string]any{"question": "meaning of life?"},
	})
	text, isErr := toolText(t, resp)
	if isErr {
		t.Fatalf("unexpected error result: %q", text)
	}
	var parsed Result
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		t.Fatalf("tool text is not a result payload: %v\n%s", err, text)
	}
	if parsed.Answer != "42" {
		t.Errorf("unexpected answer: %q", parsed.Answer)
	}
	if len(parsed.Sources) != 1 || parsed.Sources[0].File != "guide.txt" {
		t.Errorf("unexpected sources: %#v", parsed.Sources)
	}
	if len(index.queries) != 1 || index.queries[0] != "meaning of life?" {
		t.Errorf("question did not reach retrieval: %v", index.queries)
	}
}

func TestServerEmptyIndexAnswer(t *testing.T) {
	c := startServer(t, newTestFlow(&fakeIndex{has: false}, &fakeModel{answer: "never"}))

	resp := c.call(1, "tools/call", map[string]any{
		"name":      "answer",
		"arguments": map[string]any{"question": "anything?"},
	})
	text, isErr := toolText(t, resp)
	if isErr {
		t.Fatalf("empty index is an answer, not an error: %q", text)
	}
	var parsed Result
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		t.Fatalf("tool text is not a result payload: %v", err)
	}
	if parsed.Answer != noDocumentsAnswer {
		t.Errorf("unexpected answer: %q", parsed.Answer)
	}
	if len(parsed.Sources) != 0 {
		t.Errorf("expected no sources, got %#v", parsed.Sources)
	}
}

func TestServerRejectsMissingQuestion(t *testing.T) {
	index := &fakeIndex{has: true}
	c := startServer(t, newTestFlow(index, &fakeModel{answer: "never"}))

	resp := c.call(1, "tools/call", map[string]any{
		"name":      "answer",
		"arguments": map[string]any{},
	})
	text, isErr := toolText(t, resp)
	if !isErr {
		t.Fatal("missing question must produce an error result")
	}
	if !strings.Contains(text, "invalid arguments") || !strings.Contains(text, "question") {
		t.Errorf("unexpected error text: %q", text)
	}
	if len(index.queries) != 0 {
		t.Error("rejected arguments must never reach retrieval")
	}
}

func TestServerRejectsWrongArgumentType(t *testing.T) {
	c := startServer(t, newTestFlow(&fakeIndex{has: true}, &fakeModel{answer: "never"}))

	resp := c.call(1, "tools/call", map[string]any{
		"name":      "answer",
		"arguments": map[string]any{"question": 7},
	})
	text, isErr := toolText(t, resp)
	if !isErr {
		t.Fatal("a non-string question must produce an error result")
	}
	if !strings.Contains(text, "invalid arguments") {
		t.Errorf("unexpected error text: %q", text)
	}
}

func TestServerUnknownTool(t *testing.T) {
	c := startServer(t, newTestFlow(&fakeIndex{has: true}, &fakeModel{answer: "never"}))

	resp := c.call(1, "tools/call", map[string]any{"name": "bogus", "arguments": map[string]any{}})
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected a protocol error, got %#v", resp)
	}
	if errObj["code"].(float64) != -32602 {
		t.Errorf("unexpected error code: %v", errObj["code"])
	}
}

func TestServerUnknownMethod(t *testing.T) {
	c := startServer(t, newTestFlow(&fakeIndex{has: true}, &fakeModel{answer: "never"}))

	resp := c.call(1, "resources/list", nil)
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected a protocol error, got %#v", resp)
	}
	if errObj["code"].(float64) != -32601 {
		t.Errorf("unexpected error code: %v", errObj["code"])
	}
	if !strings.Contains(errObj["message"].(string), "resources/list") {
		t.Errorf("error should name the method: %v", errObj["message"])
	}
}

func TestServerSkipsNoiseLines(t *testing.T) {
	c := startServer(t, newTestFlow(&fakeIndex{has: true}, &fakeModel{answer: "ok"}))

	c.send("WARN retrieval warming up")
	c.send("{not even json")
	resp := c.call(7, "tools/list", nil)
	if resp["id"].(float64) != 7 {
		t.Errorf("reply should be for the real request, got id %v", resp["id"])
	}
	if _, ok := resp["result"]; !ok {
		t.Errorf("expected a result, got %#v", resp)
	}
}
