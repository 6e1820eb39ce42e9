package session

import (
	"context"
	"testing"

	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/hooks"
	"github.com/hqai/agentkit/pkg/tool"
	"github.com/stretchr/testify/require"
)

type scriptedStream struct {
	fragments []backend.Fragment
	idx       int
	err       error
	closed    bool
}

func (s *scriptedStream) Next() bool {
	if s.idx >= len(s.fragments) {
		return false
	}
	s.idx++
	return true
}

func (s *scriptedStream) Current() backend.Fragment { return s.fragments[s.idx-1] }
func (s *scriptedStream) Err() error                { return s.err }
func (s *scriptedStream) Close() error              { s.closed = true; return nil }

// scriptedClient replays canned responses or streams in call order and
// records every request it saw.
type scriptedClient struct {
	responses []*backend.Response
	streams   []*scriptedStream
	errs      []error
	requests  []backend.Request
}

func (c *scriptedClient) CreateChatCompletion(ctx context.Context, req backend.Request) (*backend.Response, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	return c.responses[i], nil
}

func (c *scriptedClient) StreamChatCompletion(ctx context.Context, req backend.Request) (backend.Stream, error) {
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	return c.streams[i], nil
}

func (c *scriptedClient) Provider() string { return "scripted" }

type echoArgs struct {
	Text string `json:"text"`
}

func newSessionForTest(t *testing.T, client backend.Client, config AgentConfig, tools []tool.Definition, middleware ...hooks.Middleware) *Session {
	t.Helper()
	s, err := New(Options{
		Client:     client,
		Config:     config,
		Tools:      tools,
		Middleware: middleware,
	})
	require.NoError(t, err)
	return s
}

func echoTool(t *testing.T) tool.Definition {
	t.Helper()
	def, err := tool.New("echo", "Echoes text back.", echoArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "echo: " + args["text"].(string), nil
		})
	require.NoError(t, err)
	return def
}
