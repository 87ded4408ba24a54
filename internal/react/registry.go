package react

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is a callable the loop may dispatch to. The result must be
// JSON-serializable.
type Tool func(ctx context.Context, args map[string]any) (any, error)

// Registry maps tool names to callables for one agent role.
type Registry struct {
	role  string
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry for a role.
func NewRegistry(role string) *Registry {
	return &Registry{
		role:  role,
		tools: make(map[string]Tool),
	}
}

// Role returns the role this registry serves.
func (r *Registry) Role() string {
	return r.role
}

// Register adds or replaces a tool.
func (r *Registry) Register(name string, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches a tool call. Faults never escape: an unknown name, a
// returned error, and a panic all become an error observation so the loop
// can continue.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result any, errMsg string) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return map[string]any{
			"error":     "tool not found",
			"tool":      name,
			"available": r.Names(),
		}, ""
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			errMsg = fmt.Sprintf("tool %s panicked: %v", name, rec)
		}
	}()

	out, err := tool(ctx, args)
	if err != nil {
		return nil, fmt.Sprintf("tool %s failed: %v", name, err)
	}
	return out, ""
}
