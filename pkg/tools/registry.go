package tools

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateTool reports an attempt to register a tool name twice.
var ErrDuplicateTool = errors.New("duplicate tool name")

// DuplicateToolError carries the offending name. It matches
// ErrDuplicateTool under errors.Is.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("duplicate tool name %q", e.Name)
}

func (e *DuplicateToolError) Is(target error) bool {
	return target == ErrDuplicateTool
}

// Registry is the ordered, append-only inventory of tools available to the
// decision layer. Registration happens during startup wiring; afterwards
// the registry is read concurrently by the engine and the executor.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. The registry is left untouched when the name is
// already taken or the declared parameter schema is invalid.
func (r *Registry) Register(tool Tool) error {
	if tool.Name() == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if err := validateSchema(tool); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[tool.Name()]; ok {
		return &DuplicateToolError{Name: tool.Name()}
	}
	r.tools[tool.Name()] = tool
	r.order = append(r.order, tool.Name())
	return nil
}

// Lookup retrieves a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Describe returns prompt-ready descriptors in registration order.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		params := t.Parameters()
		if params == nil {
			params = []Parameter{}
		}
		out = append(out, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
