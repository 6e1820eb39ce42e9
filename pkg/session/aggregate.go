package session

import (
	"strings"

	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/chat"
)

// aggregator folds streamed fragments back into one complete response.
// Tool-call increments may arrive out of order and interleaved across
// indices; the final list is dense over 0..max observed index, with unseen
// indices left as empty placeholder records.
type aggregator struct {
	reasoning strings.Builder
	content   strings.Builder
	calls     []chat.ToolCall
}

func newAggregator() *aggregator {
	return &aggregator{}
}

func (a *aggregator) add(frag backend.Fragment) {
	a.reasoning.WriteString(frag.Reasoning)
	a.content.WriteString(frag.Content)

	for _, delta := range frag.ToolCalls {
		if delta.Index < 0 {
			continue
		}
		for len(a.calls) <= delta.Index {
			a.calls = append(a.calls, chat.ToolCall{})
		}

		call := &a.calls[delta.Index]
		if call.ID == "" && delta.ID != "" {
			call.ID = delta.ID
		}
		call.Name += delta.Name
		call.Arguments += delta.Arguments
	}
}

// response assembles the aggregate into the same shape a non-streaming call
// returns, so both loop variants share one state machine.
func (a *aggregator) response(model string) *backend.Response {
	return &backend.Response{
		Content:   a.content.String(),
		Reasoning: a.reasoning.String(),
		ToolCalls: append([]chat.ToolCall(nil), a.calls...),
		Model:     model,
	}
}
