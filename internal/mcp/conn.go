// Package mcp speaks JSON-RPC 2.0 to tool providers over stdio subprocesses,
// WebSocket, or HTTP, and owns the hub that routes tool calls across them.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harborseal/harborseal/internal/errorsx"
	"github.com/harborseal/harborseal/internal/schema"
)

const protocolVersion = "2024-11-05"

// Spec describes one provider endpoint before launch classification.
type Spec struct {
	Target  string
	Args    []string
	Env     map[string]string
	Headers map[string]string
}

// Conn is one live JSON-RPC session with a tool provider. A Conn carries at
// most one in-flight call; the dispatch loop never needs more.
type Conn struct {
	id   string
	spec Spec
	plan LaunchPlan

	httpClient *http.Client

	// Subprocess transport.
	cmd   *exec.Cmd
	stdin io.WriteCloser

	// WebSocket transport.
	ws *websocket.Conn

	// lines carries raw frames from the reader goroutine so calls can wait
	// on a context instead of blocking in a read.
	lines chan string
	done  chan struct{}

	mu      sync.Mutex // serialises calls
	closeMu sync.Mutex
	closed  bool
	nextID  int64
	ready   atomic.Bool
}

// NewConn builds an unconnected Conn for the given provider spec.
func NewConn(id string, spec Spec) *Conn {
	return &Conn{
		id:   id,
		spec: spec,
		plan: ResolveLaunch(spec.Target, spec.Args),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		lines: make(chan string, 16),
		done:  make(chan struct{}),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) Mode() LaunchMode { return c.plan.Mode }
func (c *Conn) Ready() bool      { return c.ready.Load() }

// Connect launches or dials the provider and runs the protocol handshake.
// Any failure leaves no live subprocess behind.
func (c *Conn) Connect(ctx context.Context) error {
	var err error
	switch {
	case c.plan.Mode == LaunchRemote && isWebSocketURL(c.plan.URL):
		err = c.connectWS(ctx)
	case c.plan.Mode == LaunchRemote:
		// Plain HTTP is per-request; there is no session to handshake.
		c.ready.Store(true)
		return nil
	default:
		err = c.connectStdio(ctx)
	}
	if err != nil {
		return errorsx.Wrap(fmt.Errorf("provider %s: %w", c.id, err), errorsx.ReasonConnection)
	}
	c.ready.Store(true)
	return nil
}

func (c *Conn) connectStdio(ctx context.Context) error {
	// The subprocess must outlive the connect context; its lifetime is
	// owned by Close.
	cmd := exec.Command(c.plan.Command, c.plan.Args...)
	if len(c.spec.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.spec.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start provider: %w", err)
	}
	c.cmd = cmd
	c.stdin = stdinPipe
	go c.readLines(stdoutPipe)

	if err := c.initialize(ctx); err != nil {
		cmd.Process.Kill() //nolint:errcheck
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

func (c *Conn) connectWS(ctx context.Context) error {
	header := http.Header{}
	for k, v := range c.spec.Headers {
		header.Set(k, v)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.plan.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.plan.URL, err)
	}
	c.ws = ws
	go c.readFrames(ws)

	if err := c.initialize(ctx); err != nil {
		ws.Close() //nolint:errcheck
		return fmt.Errorf("initialize: %w", err)
	}
	return nil
}

// readLines feeds newline-delimited frames from a subprocess pipe into
// c.lines until EOF or Close.
func (c *Conn) readLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
	close(c.lines)
}

// readFrames feeds WebSocket frames into c.lines until the socket dies.
func (c *Conn) readFrames(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			close(c.lines)
			return
		}
		line := strings.TrimSpace(string(data))
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.done:
			return
		}
	}
}

// ListTools queries the provider's live tool listing.
func (c *Conn) ListTools(ctx context.Context) ([]schema.ToolDefinition, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("provider %s: list tools: %w", c.id, err), errorsx.ReasonConnection)
	}
	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("provider %s: parse tool listing: %w", c.id, err), errorsx.ReasonConnection)
	}

	defs := make([]schema.ToolDefinition, 0, len(result.Tools))
	for _, t := range result.Tools {
		if t.Name == "" {
			continue
		}
		defs = append(defs, schema.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return defs, nil
}

// CallTool invokes a named tool on the provider. Provider-reported errors,
// dead sessions and context timeouts all come back as invocation-reasoned
// errors; the text of successful calls is the joined text content blocks.
func (c *Conn) CallTool(ctx context.Context, toolName string, toolArgs map[string]any) (string, error) {
	if toolArgs == nil {
		toolArgs = map[string]any{}
	}
	payload := map[string]any{
		"name":      toolName,
		"arguments": toolArgs,
	}
	resp, err := c.call(ctx, "tools/call", payload)
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("call %s on provider %s: %w", toolName, c.id, err), errorsx.ReasonInvocation)
	}

	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return string(resp), nil
	}

	var parts []string
	for _, block := range result.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	out := strings.Join(parts, "\n")

	if result.IsError {
		if out == "" {
			out = "tool reported an error"
		}
		return "", errorsx.Wrap(fmt.Errorf("call %s on provider %s: %s", toolName, c.id, out), errorsx.ReasonInvocation)
	}
	if out == "" {
		out = "(no output)"
	}
	return out, nil
}

// Close tears the session down: subprocess killed, socket closed. Safe to
// call more than once; a call in flight gets a connection-closed error
// rather than hanging.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.ready.Store(false)
	close(c.done)

	var errs []error
	if c.stdin != nil {
		if err := c.stdin.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.cmd != nil && c.cmd.Process != nil {
		if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, err)
		}
		_ = c.cmd.Wait()
	}
	if c.ws != nil {
		if err := c.ws.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// JSON-RPC plumbing
// ---------------------------------------------------------------------------

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Conn) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "harborseal", "version": "1.0"},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	// Send initialized notification (no response expected).
	notif := map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"}
	data, _ := json.Marshal(notif)
	return c.send(data)
}

func (c *Conn) send(data []byte) error {
	if c.ws != nil {
		return c.ws.WriteMessage(websocket.TextMessage, data)
	}
	if c.stdin != nil {
		_, err := fmt.Fprintf(c.stdin, "%s\n", data)
		return err
	}
	return fmt.Errorf("connection not started")
}

func (c *Conn) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.plan.Mode == LaunchRemote && !isWebSocketURL(c.plan.URL) {
		return c.callHTTP(ctx, method, params)
	}
	return c.callSession(ctx, method, params)
}

// callSession does one request/response exchange over the session stream.
func (c *Conn) callSession(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(data); err != nil {
		return nil, fmt.Errorf("write to provider: %w", err)
	}

	// Await the reply carrying our id. Non-protocol output and stale
	// replies from abandoned calls are skipped.
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, fmt.Errorf("connection closed")
		case line, ok := <-c.lines:
			if !ok {
				return nil, fmt.Errorf("provider closed the stream")
			}
			var resp rpcResponse
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				continue
			}
			if resp.ID == nil || *resp.ID != id {
				continue
			}
			if resp.Error != nil {
				return nil, fmt.Errorf("provider error %d: %s", resp.Error.Code, resp.Error.Message)
			}
			return resp.Result, nil
		}
	}
}

func (c *Conn) callHTTP(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.plan.URL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.spec.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from provider", httpResp.StatusCode)
	}

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("provider error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

func isWebSocketURL(url string) bool {
	return strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://")
}
