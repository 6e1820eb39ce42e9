// Package session drives multi-turn tool-calling conversations against a
// pluggable LLM backend.
//
// Invariants:
// - The transcript's first message is always exactly one system message.
// - Each backend round trip consumes one unit of the iteration budget.
// - Tool dispatch appends exactly one tool message per requested call, in
//   request order.
// - The streaming and non-streaming loops share identical transition
//   semantics.
//
// Usage:
//
//	defs, _ := todos.Tools(store)
//	s, _ := session.New(session.Options{
//		Client:       backend.NewOpenAI(apiKey),
//		SystemPrompt: "You are a project management assistant.",
//		Tools:        defs,
//		Middleware:   []hooks.Middleware{todos.SessionScope{}},
//	})
//	resp, err := s.Call(ctx, "Create a task list for the release.")
package session
