package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harborseal/harborseal/internal/args"
)

const protocolVersion = "2024-11-05"

// answerSchema declares the single parameter the retrieval tool accepts.
const answerSchema = `{
  "type": "object",
  "properties": {
    "question": {
      "type": "string",
      "description": "The question to answer from the indexed documents"
    }
  },
  "required": ["question"]
}`

// Server speaks the provider side of the protocol over a line-oriented
// stream: initialize, tools/list and tools/call for the single retrieval
// tool. The dispatcher connects to it the same way it connects to any
// external provider.
type Server struct {
	flow *Flow
	in   io.Reader
	out  io.Writer
	mu   sync.Mutex // serialises writes to out
}

// NewServer builds a provider server around a flow. Callers pass the
// process stdio for real serving or in-memory pipes for tests.
func NewServer(flow *Flow, in io.Reader, out io.Writer) *Server {
	return &Server{flow: flow, in: in, out: out}
}

// Serve reads requests until the input stream closes or the context is
// cancelled. A closed stream is a normal shutdown, not an error.
func (s *Server) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line string) {
	var req struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		// Not protocol traffic, skip it.
		return
	}

	switch req.Method {
	case "initialize":
		s.reply(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "harborseal-rag", "version": "1.0"},
		})
	case "notifications/initialized":
		// Notification, no response.
	case "tools/list":
		s.reply(req.ID, map[string]any{
			"tools": []map[string]any{{
				"name":        "answer",
				"description": "Answer a question using retrieval over the indexed documents",
				"inputSchema": json.RawMessage(answerSchema),
			}},
		})
	case "tools/call":
		s.handleCall(ctx, req.ID, req.Params)
	default:
		if req.ID != nil {
			s.replyError(req.ID, -32601, fmt.Sprintf("method not found: %s", req.Method))
		}
	}
}

func (s *Server) handleCall(ctx context.Context, id *int64, params json.RawMessage) {
	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &call); err != nil {
		s.replyError(id, -32602, "invalid params")
		return
	}
	if call.Name != "answer" {
		s.replyError(id, -32602, fmt.Sprintf("unknown tool: %s", call.Name))
		return
	}

	var query struct {
		Question string `json:"question"`
	}
	val, err := args.Decode(call.Arguments)
	if err == nil {
		err = args.Validate(val, json.RawMessage(answerSchema))
	}
	if err == nil {
		err = args.ToStruct(val, &query)
	}
	if err != nil {
		s.replyToolText(id, fmt.Sprintf("invalid arguments: %v", err), true)
		return
	}

	result := s.flow.Answer(ctx, query.Question)
	payload, err := json.Marshal(result)
	if err != nil {
		s.replyToolText(id, fmt.Sprintf("encode result: %v", err), true)
		return
	}
	s.replyToolText(id, string(payload), false)
}

func (s *Server) reply(id *int64, result any) {
	if id == nil {
		return
	}
	s.write(map[string]any{"jsonrpc": "2.0", "id": *id, "result": result})
}

// replyToolText wraps text in the content-block shape tool results use.
// Tool-level failures travel as isError results, not protocol errors.
func (s *Server) replyToolText(id *int64, text string, isErr bool) {
	result := map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
	if isErr {
		result["isError"] = true
	}
	s.reply(id, result)
}

func (s *Server) replyError(id *int64, code int, message string) {
	if id == nil {
		return
	}
	s.write(map[string]any{
		"jsonrpc": "2.0",
		"id":      *id,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func (s *Server) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Encode response failed", "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s\n", data)
}
