package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Func is a callable exposed to the model. Arguments arrive as the parsed
// JSON object the model produced, after middleware transformation.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Definition describes one registered tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Func
}

// Descriptor is the declaration sent to the backend; it carries no handler.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// New builds a Definition, reflecting the parameter schema from args, a
// struct value (or pointer) whose fields describe the tool's parameters.
func New(name, description string, args any, handler Func) (Definition, error) {
	if strings.TrimSpace(name) == "" {
		return Definition{}, fmt.Errorf("tool name is required")
	}
	if handler == nil {
		return Definition{}, fmt.Errorf("tool %s: handler is required", name)
	}

	parameters, err := GenerateSchema(args)
	if err != nil {
		return Definition{}, fmt.Errorf("tool %s: %w", name, err)
	}

	return Definition{
		Name:        name,
		Description: description,
		Parameters:  parameters,
		Handler:     handler,
	}, nil
}

// Registry holds tool definitions with their compiled argument validators.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool. The parameter schema is compiled once here; a tool
// name may only be registered once.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.Parameters))
	if err != nil {
		return fmt.Errorf("tool %s: failed to compile parameter schema: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}
	r.defs[def.Name] = &def
	r.schemas[def.Name] = schema
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Validate checks parsed arguments against the tool's compiled schema.
func (r *Registry) Validate(name string, args map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("tool %s is not registered", name)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		issues = append(issues, resultErr.String())
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(issues, "; "))
}

// Descriptors returns the backend-facing declarations in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		descriptors = append(descriptors, Descriptor{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return descriptors
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.defs)
}
