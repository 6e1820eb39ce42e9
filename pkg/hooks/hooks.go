// Package hooks chains caller-supplied transformations around tool calls.
//
// Invariants:
// - Before hooks run in registration order, each consuming the previous
//   hook's output.
// - After hooks run in registration order as well, matching the primary
//   dispatch path.
// - Hooks have read access to the owning session and must not mutate it.
package hooks

import "sync"

// Session is the read-only view of the owning session handed to middleware.
type Session interface {
	ID() string
}

// Middleware transforms tool arguments before execution and results after.
type Middleware interface {
	BeforeToolCall(toolName string, args map[string]any, session Session) map[string]any
	AfterToolCall(result any, toolName string, session Session) any
}

// Passthrough provides no-op Middleware methods to embed when only one side
// of the chain is needed.
type Passthrough struct{}

func (Passthrough) BeforeToolCall(_ string, args map[string]any, _ Session) map[string]any {
	return args
}

func (Passthrough) AfterToolCall(result any, _ string, _ Session) any {
	return result
}

// Chain applies registered middleware in order.
type Chain struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewChain creates a chain with the given middleware, in order.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use appends middleware to the chain.
func (c *Chain) Use(m Middleware) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, m)
}

// Before runs every middleware's BeforeToolCall in registration order.
func (c *Chain) Before(toolName string, args map[string]any, session Session) map[string]any {
	c.mu.RLock()
	middlewares := append([]Middleware(nil), c.middlewares...)
	c.mu.RUnlock()

	for _, m := range middlewares {
		args = m.BeforeToolCall(toolName, args, session)
	}
	return args
}

// After runs every middleware's AfterToolCall in registration order.
func (c *Chain) After(result any, toolName string, session Session) any {
	c.mu.RLock()
	middlewares := append([]Middleware(nil), c.middlewares...)
	c.mu.RUnlock()

	for _, m := range middlewares {
		result = m.AfterToolCall(result, toolName, session)
	}
	return result
}
