// Package tools holds the merged tool index: which connected provider serves
// which tool name, and the advertised definitions behind the routing table.
package tools

import (
	"log/slog"
	"sync"

	"github.com/harborseal/harborseal/internal/schema"
)

// Index maps tool names to the providers that serve them. Each provider owns
// the definitions it advertised; the merged routing table holds at most one
// live route per name. When two providers advertise the same name the later
// registration wins and the collision is logged.
type Index struct {
	mu     sync.RWMutex
	routes map[string]string                  // tool name -> provider id
	defs   map[string][]schema.ToolDefinition // provider id -> advertised definitions
	order  []string                           // provider registration order
}

func NewIndex() *Index {
	return &Index{
		routes: make(map[string]string),
		defs:   make(map[string][]schema.ToolDefinition),
	}
}

// Register replaces providerID's advertised definitions and re-merges the
// routing table. Safe to call repeatedly with refreshed listings.
func (ix *Index) Register(providerID string, defs []schema.ToolDefinition) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, known := ix.defs[providerID]; !known {
		ix.order = append(ix.order, providerID)
	}
	ix.defs[providerID] = defs
	ix.remerge()
}

// Drop removes providerID's definitions and routes. Names the provider was
// serving fall back to the earlier provider that advertised them, if any.
func (ix *Index) Drop(providerID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, known := ix.defs[providerID]; !known {
		return
	}
	delete(ix.defs, providerID)
	for i, id := range ix.order {
		if id == providerID {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
	ix.remerge()
}

// Clear empties the index. Called on teardown.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.routes = make(map[string]string)
	ix.defs = make(map[string][]schema.ToolDefinition)
	ix.order = nil
}

// remerge rebuilds routes from scratch in registration order, so later
// providers override earlier ones. Warns only when a name actually changes
// hands, which keeps steady-state refreshes quiet. Callers hold ix.mu.
func (ix *Index) remerge() {
	next := make(map[string]string, len(ix.routes))
	for _, id := range ix.order {
		for _, def := range ix.defs[id] {
			if owner, taken := next[def.Name]; taken && owner != id {
				slog.Warn("Tool name collision, later registration wins",
					"tool", def.Name, "was", owner, "now", id)
			}
			next[def.Name] = id
		}
	}
	for name, id := range next {
		if prev, had := ix.routes[name]; had && prev != id {
			slog.Warn("Tool route changed", "tool", name, "was", prev, "now", id)
		}
	}
	ix.routes = next
}

// Resolve maps a tool name to the id of the provider that serves it.
func (ix *Index) Resolve(name string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.routes[name]
	return id, ok
}

// Snapshot returns the merged tool definitions in provider registration
// order. A name advertised by several providers appears once, with the
// definition of the provider it is routed to.
func (ix *Index) Snapshot() []schema.ToolDefinition {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]schema.ToolDefinition, 0, len(ix.routes))
	for _, id := range ix.order {
		for _, def := range ix.defs[id] {
			if ix.routes[def.Name] == id {
				out = append(out, def)
			}
		}
	}
	return out
}

// Definitions returns the snapshot in OpenAI function-calling format.
func (ix *Index) Definitions() []map[string]any {
	defs := ix.Snapshot()
	list := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		list = append(list, def.ToWireMap())
	}
	return list
}

// Routes returns a copy of the name -> provider table for display.
func (ix *Index) Routes() map[string]string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]string, len(ix.routes))
	for name, id := range ix.routes {
		out[name] = id
	}
	return out
}

// Providers returns the registered provider ids in registration order.
func (ix *Index) Providers() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Len returns the number of routed tool names.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.routes)
}
