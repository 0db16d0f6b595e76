package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
)

// Registry holds all registered tools and dispatches invocations. It is
// thread-safe and supports registration at runtime.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	r.tools[tool.Name] = tool
	logging.ServerDebug("registered tool: %s", tool.Name)
	return nil
}

// MustRegister registers a tool and panics on error. Use for static
// registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns all registered tool names, sorted.
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

// Dispatch validates the request against the tool's schema and executes it.
// Unknown tools and schema violations come back as typed errors in the
// Response; handlers never see an argument record missing a required key.
func (r *Registry) Dispatch(ctx context.Context, req Request) Response {
	tool := r.Get(req.Name)
	if tool == nil {
		return Response{ID: req.ID, Err: fmt.Errorf("%w: %s", ErrToolNotFound, req.Name)}
	}

	if err := checkSchema(tool.Schema, req.Arguments); err != nil {
		return Response{ID: req.ID, Err: err}
	}

	logging.ServerDebug("dispatching %s (id=%s)", req.Name, req.ID)
	result, err := tool.Execute(ctx, req.Arguments)
	if err != nil {
		return Response{ID: req.ID, Err: err}
	}
	return Response{ID: req.ID, Result: result}
}

// checkSchema verifies required arguments are present and roughly typed.
func checkSchema(schema Schema, args map[string]any) error {
	for _, name := range schema.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return faults.Validation("missing required argument: %s", name)
		}
		prop, ok := schema.Properties[name]
		if !ok {
			continue
		}
		switch prop.Type {
		case "string":
			if _, ok := v.(string); !ok {
				return faults.Validation("argument %s must be a string", name)
			}
		case "array":
			if _, ok := v.([]any); !ok {
				if _, ok := v.([]string); !ok {
					return faults.Validation("argument %s must be an array", name)
				}
			}
		}
	}
	return nil
}

// StringSlice coerces a JSON-decoded argument into a string slice. A bare
// string becomes a one-element slice.
func StringSlice(v any) ([]string, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{vv}, nil
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, faults.Validation("expected string array, got %T element", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, faults.Validation("expected string array, got %T", v)
	}
}
