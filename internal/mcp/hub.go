package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harborseal/harborseal/internal/errorsx"
	"github.com/harborseal/harborseal/internal/schema"
	"github.com/harborseal/harborseal/internal/tools"
)

const (
	defaultConnectTimeout = 15 * time.Second
	defaultInvokeTimeout  = 60 * time.Second
)

// Hub owns the provider connections and the routing table, and dispatches
// tool calls across them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	index *tools.Index

	connectTimeout time.Duration
	invokeTimeout  time.Duration
}

var _ schema.ToolDispatcher = (*Hub)(nil)

// NewHub builds an empty hub. Zero timeouts fall back to the defaults.
func NewHub(connectTimeout, invokeTimeout time.Duration) *Hub {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if invokeTimeout <= 0 {
		invokeTimeout = defaultInvokeTimeout
	}
	return &Hub{
		conns:          make(map[string]*Conn),
		index:          tools.NewIndex(),
		connectTimeout: connectTimeout,
		invokeTimeout:  invokeTimeout,
	}
}

// Connect starts the given provider, runs the handshake and registers its
// tools. Connecting an id that is already live keeps the existing session.
func (h *Hub) Connect(ctx context.Context, id string, spec Spec) error {
	h.mu.RLock()
	_, exists := h.conns[id]
	h.mu.RUnlock()
	if exists {
		slog.Warn("Provider already connected, keeping existing session", "provider", id)
		return nil
	}

	conn := NewConn(id, spec)
	cctx, cancel := context.WithTimeout(ctx, h.connectTimeout)
	defer cancel()

	if err := conn.Connect(cctx); err != nil {
		return err
	}
	defs, err := conn.ListTools(cctx)
	if err != nil {
		conn.Close() //nolint:errcheck
		return err
	}

	h.mu.Lock()
	if _, exists := h.conns[id]; exists {
		h.mu.Unlock()
		conn.Close() //nolint:errcheck
		slog.Warn("Provider already connected, keeping existing session", "provider", id)
		return nil
	}
	h.conns[id] = conn
	h.mu.Unlock()

	h.index.Register(id, defs)
	slog.Info("Provider connected", "provider", id, "mode", conn.Mode().String(), "tools", len(defs))
	return nil
}

// ConnectAll connects every configured provider in id order and returns how
// many came up. Individual failures are logged, not fatal.
func (h *Hub) ConnectAll(ctx context.Context, specs map[string]Spec) int {
	ids := make([]string, 0, len(specs))
	for id := range specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	connected := 0
	for _, id := range ids {
		if err := h.Connect(ctx, id, specs[id]); err != nil {
			slog.Warn("Provider connection failed", "provider", id, "error", err)
			continue
		}
		connected++
	}
	return connected
}

// Catalogue re-lists every live provider and returns the merged tool
// definitions. A provider that fails to answer drops out of the routing
// table until it lists successfully again.
func (h *Hub) Catalogue(ctx context.Context) []schema.ToolDefinition {
	for _, id := range h.providerIDs() {
		conn := h.conn(id)
		if conn == nil {
			continue
		}
		defs, err := conn.ListTools(ctx)
		if err != nil {
			slog.Warn("Tool listing failed, dropping provider from routing", "provider", id, "error", err)
			h.index.Register(id, nil)
			continue
		}
		h.index.Register(id, defs)
	}
	return h.index.Snapshot()
}

// Resolve maps a tool name to the provider that serves it.
func (h *Hub) Resolve(toolName string) (string, bool) {
	return h.index.Resolve(toolName)
}

// Invoke runs one tool call on the named provider under the configured
// invoke timeout.
func (h *Hub) Invoke(ctx context.Context, providerID, toolName string, toolArgs map[string]any) (string, error) {
	conn := h.conn(providerID)
	if conn == nil {
		return "", errorsx.Wrap(fmt.Errorf("no live connection for provider %s", providerID), errorsx.ReasonInvocation)
	}

	ictx, cancel := context.WithTimeout(ctx, h.invokeTimeout)
	defer cancel()
	return conn.CallTool(ictx, toolName, toolArgs)
}

// Routes returns a copy of the current tool-to-provider routing table.
func (h *Hub) Routes() map[string]string {
	return h.index.Routes()
}

// Providers returns the ids of live connections, sorted.
func (h *Hub) Providers() []string {
	return h.providerIDs()
}

// CloseAll shuts down every provider session and empties the routing table.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Close(); err != nil {
			slog.Warn("Provider close failed", "provider", id, "error", err)
		}
	}
	h.index.Clear()
}

func (h *Hub) conn(id string) *Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[id]
}

func (h *Hub) providerIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
