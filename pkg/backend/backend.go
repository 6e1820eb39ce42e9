// Package backend defines the uniform chat-completion contract the
// orchestration core speaks, plus adapters that normalize provider-specific
// wire shapes into it. Provider quirks never leak past this package: every
// adapter emits the same Response and Fragment types.
package backend

import (
	"context"
	"time"

	"github.com/hqai/agentkit/pkg/chat"
	"github.com/hqai/agentkit/pkg/tool"
)

// ResponseFormatJSON asks the backend for round-trip-valid JSON content.
const ResponseFormatJSON = "json_object"

// Request carries one chat-completion call. Timeout is advisory and passed
// through to the provider; the core never enforces it.
type Request struct {
	Model          string
	Messages       []chat.Message
	Tools          []tool.Descriptor
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
	ResponseFormat string
}

// Usage tracks token consumption for one response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is one fully-formed assistant turn.
type Response struct {
	Content   string
	Reasoning string
	ToolCalls []chat.ToolCall
	Model     string
	Usage     Usage
}

// ToolCallDelta is one indexed tool-call increment inside a fragment. Name
// and Arguments are partial and concatenate across fragments; ID is set on
// whichever fragment first carries it.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Fragment is one incremental unit of a streamed response.
type Fragment struct {
	Reasoning string
	Content   string
	ToolCalls []ToolCallDelta
}

// Stream is a lazy, single-pass fragment sequence. The usual consumption
// loop is: for s.Next() { use s.Current() }, then check s.Err() and Close.
type Stream interface {
	Next() bool
	Current() Fragment
	Err() error
	Close() error
}

// Client is the LLM backend collaborator.
type Client interface {
	// CreateChatCompletion performs one non-streaming call.
	CreateChatCompletion(ctx context.Context, req Request) (*Response, error)

	// StreamChatCompletion opens a fragment stream for one call.
	StreamChatCompletion(ctx context.Context, req Request) (Stream, error)

	// Provider returns the provider name for logging and metrics.
	Provider() string
}
