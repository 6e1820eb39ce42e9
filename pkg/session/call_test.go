package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/chat"
	"github.com/hqai/agentkit/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallTerminalResponse(t *testing.T) {
	client := &scriptedClient{
		responses: []*backend.Response{{Content: "hi there", Model: "m"}},
	}
	s := newSessionForTest(t, client, AgentConfig{}, nil)

	resp, err := s.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	require.Len(t, client.requests, 1)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, "hi there", msgs[2].Content)
}

func TestCallToolLoop(t *testing.T) {
	client := &scriptedClient{
		responses: []*backend.Response{
			{ToolCalls: []chat.ToolCall{
				{ID: "call_1", Name: "echo", Arguments: `{"text":"ping"}`},
			}},
			{Content: "the tool said: echo: ping"},
		},
	}
	s := newSessionForTest(t, client, AgentConfig{}, []tool.Definition{echoTool(t)})

	resp, err := s.Call(context.Background(), "run echo")
	require.NoError(t, err)
	assert.Equal(t, "the tool said: echo: ping", resp.Content)
	require.Len(t, client.requests, 2)

	// The second request must carry the assistant tool-call turn followed by
	// its tool result.
	second := client.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, chat.RoleAssistant, second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, chat.RoleTool, second[3].Role)
	assert.Equal(t, "call_1", second[3].ToolCallID)
	assert.Equal(t, "echo: ping", second[3].Content)

	// Tool declarations travel with every request.
	require.Len(t, client.requests[0].Tools, 1)
	assert.Equal(t, "echo", client.requests[0].Tools[0].Name)
}

func TestCallIterationBudgetExhausted(t *testing.T) {
	toolResp := &backend.Response{ToolCalls: []chat.ToolCall{
		{ID: "call_1", Name: "echo", Arguments: `{"text":"again"}`},
	}}
	client := &scriptedClient{responses: []*backend.Response{toolResp}}
	config := DefaultAgentConfig()
	config.MaxIterations = 1
	s := newSessionForTest(t, client, config, []tool.Definition{echoTool(t)})

	resp, err := s.Call(context.Background(), "loop forever")
	require.ErrorIs(t, err, ErrIterationsExhausted)
	assert.Same(t, toolResp, resp)
	assert.Len(t, client.requests, 1)

	// The final tool batch was still dispatched before the budget ran out.
	msgs := toolMessages(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "echo: again", msgs[0].Content)
}

func TestCallBackendErrorIsFatal(t *testing.T) {
	client := &scriptedClient{errs: []error{fmt.Errorf("connection refused")}}
	s := newSessionForTest(t, client, AgentConfig{}, nil)

	resp, err := s.Call(context.Background(), "hello")
	assert.Nil(t, resp)
	require.ErrorContains(t, err, "backend call failed")
	assert.ErrorContains(t, err, "connection refused")
}

func TestCallJSONFormatCorrectiveRetry(t *testing.T) {
	client := &scriptedClient{
		responses: []*backend.Response{
			{Content: "Sure! Here is the JSON you asked for."},
			{Content: `{"ok":true}`},
		},
	}
	config := DefaultAgentConfig()
	config.ResponseFormat = backend.ResponseFormatJSON
	s := newSessionForTest(t, client, config, nil)

	resp, err := s.Call(context.Background(), "give me json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	require.Len(t, client.requests, 2)

	// The retry request carries the invalid turn plus a corrective user
	// message.
	second := client.requests[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, chat.RoleAssistant, second[2].Role)
	assert.Equal(t, chat.RoleUser, second[3].Role)
	assert.Contains(t, second[3].Content, "not valid JSON")
}

func TestCallJSONFormatAcceptsFencedContent(t *testing.T) {
	client := &scriptedClient{
		responses: []*backend.Response{
			{Content: "```json\n{\"ok\":true}\n```"},
		},
	}
	config := DefaultAgentConfig()
	config.ResponseFormat = backend.ResponseFormatJSON
	s := newSessionForTest(t, client, config, nil)

	resp, err := s.Call(context.Background(), "give me json")
	require.NoError(t, err)
	require.Len(t, client.requests, 1)
	assert.Equal(t, "```json\n{\"ok\":true}\n```", resp.Content)
}

func TestValidateJSONContent(t *testing.T) {
	assert.NoError(t, validateJSONContent(`{"a":1}`))
	assert.NoError(t, validateJSONContent(`[1,2,3]`))
	assert.NoError(t, validateJSONContent("```json\n{\"a\":1}\n```"))
	assert.NoError(t, validateJSONContent("```\n{\"a\":1}\n```"))
	assert.Error(t, validateJSONContent(""))
	assert.Error(t, validateJSONContent("not json"))
	assert.Error(t, validateJSONContent("{truncated"))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
}

func TestCallStreamDeliversFragmentsAndResponse(t *testing.T) {
	client := &scriptedClient{
		streams: []*scriptedStream{
			{fragments: []backend.Fragment{
				{Reasoning: "hmm "},
				{ToolCalls: []backend.ToolCallDelta{{Index: 0, ID: "call_1", Name: "echo"}}},
				{ToolCalls: []backend.ToolCallDelta{{Index: 0, Arguments: `{"text":"ping"}`}}},
			}},
			{fragments: []backend.Fragment{
				{Content: "pong "},
				{Content: "indeed"},
			}},
		},
	}
	s := newSessionForTest(t, client, AgentConfig{}, []tool.Definition{echoTool(t)})

	call := s.CallStream(context.Background(), "run echo")

	var fragments []backend.Fragment
	for frag := range call.Fragments() {
		fragments = append(fragments, frag)
	}

	resp, err := call.Wait()
	require.NoError(t, err)
	assert.Equal(t, "pong indeed", resp.Content)
	assert.Len(t, fragments, 5)
	require.Len(t, client.requests, 2)

	// Both streams were closed after consumption.
	assert.True(t, client.streams[0].closed)
	assert.True(t, client.streams[1].closed)

	// The tool result landed in the transcript exactly as in the
	// non-streaming loop.
	msgs := toolMessages(s)
	require.Len(t, msgs, 1)
	assert.Equal(t, "echo: ping", msgs[0].Content)
	assert.Equal(t, "call_1", msgs[0].ToolCallID)
}

func TestCallStreamIterationBudgetExhausted(t *testing.T) {
	client := &scriptedClient{
		streams: []*scriptedStream{
			{fragments: []backend.Fragment{
				{ToolCalls: []backend.ToolCallDelta{{Index: 0, ID: "call_1", Name: "echo", Arguments: `{"text":"x"}`}}},
			}},
		},
	}
	config := DefaultAgentConfig()
	config.MaxIterations = 1
	s := newSessionForTest(t, client, config, []tool.Definition{echoTool(t)})

	call := s.CallStream(context.Background(), "loop")
	for range call.Fragments() {
	}

	resp, err := call.Wait()
	require.ErrorIs(t, err, ErrIterationsExhausted)
	require.NotNil(t, resp)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)
}

func TestCallStreamError(t *testing.T) {
	client := &scriptedClient{
		streams: []*scriptedStream{
			{
				fragments: []backend.Fragment{{Content: "partial"}},
				err:       fmt.Errorf("connection reset"),
			},
		},
	}
	s := newSessionForTest(t, client, AgentConfig{}, nil)

	call := s.CallStream(context.Background(), "hello")
	for range call.Fragments() {
	}

	resp, err := call.Wait()
	assert.Nil(t, resp)
	require.ErrorContains(t, err, "backend stream failed")
	assert.ErrorContains(t, err, "connection reset")
}

// Wait must not require draining when the context is cancelled: the loop
// goroutine abandons its pending fragment send and finishes.
func TestCallStreamWaitAfterCancelWithoutDraining(t *testing.T) {
	client := &scriptedClient{
		streams: []*scriptedStream{
			{fragments: []backend.Fragment{
				{Content: "a"}, {Content: "b"},
			}},
		},
	}
	s := newSessionForTest(t, client, AgentConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	call := s.CallStream(ctx, "hello")
	cancel()

	resp, err := call.Wait()
	assert.Nil(t, resp)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCallStreamContextCancel(t *testing.T) {
	client := &scriptedClient{
		streams: []*scriptedStream{
			{fragments: []backend.Fragment{
				{Content: "a"}, {Content: "b"}, {Content: "c"},
			}},
		},
	}
	s := newSessionForTest(t, client, AgentConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	call := s.CallStream(ctx, "hello")

	<-call.Fragments()
	cancel()

	_, err := call.Wait()
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, client.streams[0].closed)
}
