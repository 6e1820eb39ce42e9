package session

import (
	"testing"

	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorConcatenatesChannels(t *testing.T) {
	agg := newAggregator()
	agg.add(backend.Fragment{Reasoning: "let me "})
	agg.add(backend.Fragment{Reasoning: "think", Content: "The "})
	agg.add(backend.Fragment{Content: "answer"})

	resp := agg.response("m")
	assert.Equal(t, "let me think", resp.Reasoning)
	assert.Equal(t, "The answer", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, "m", resp.Model)
}

func TestAggregatorFoldsToolCallDeltas(t *testing.T) {
	agg := newAggregator()
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{
		{Index: 0, ID: "call_a", Name: "wea"},
	}})
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{
		{Index: 0, Name: "ther"},
		{Index: 1, ID: "call_b", Name: "query_todos"},
	}})
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{
		{Index: 0, Arguments: `{"city":`},
		{Index: 1, Arguments: `{}`},
	}})
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{
		{Index: 0, Arguments: `"Oslo"}`},
	}})

	resp := agg.response("m")
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, chat.ToolCall{ID: "call_a", Name: "weather", Arguments: `{"city":"Oslo"}`}, resp.ToolCalls[0])
	assert.Equal(t, chat.ToolCall{ID: "call_b", Name: "query_todos", Arguments: `{}`}, resp.ToolCalls[1])
}

func TestAggregatorDenseOutOfOrderIndices(t *testing.T) {
	agg := newAggregator()

	// Index 2 arrives first; 0 and 1 must exist as placeholders.
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{
		{Index: 2, ID: "call_c", Name: "gamma"},
	}})
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{
		{Index: 0, ID: "call_a", Name: "alpha"},
	}})

	resp := agg.response("m")
	require.Len(t, resp.ToolCalls, 3)
	assert.Equal(t, "alpha", resp.ToolCalls[0].Name)
	assert.Equal(t, chat.ToolCall{}, resp.ToolCalls[1])
	assert.Equal(t, "gamma", resp.ToolCalls[2].Name)
}

func TestAggregatorKeepsFirstNonEmptyID(t *testing.T) {
	agg := newAggregator()
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{{Index: 0, Name: "alpha"}}})
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{{Index: 0, ID: "call_1"}}})
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{{Index: 0, ID: "call_2"}}})

	resp := agg.response("m")
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
}

func TestAggregatorIgnoresNegativeIndex(t *testing.T) {
	agg := newAggregator()
	agg.add(backend.Fragment{ToolCalls: []backend.ToolCallDelta{{Index: -1, Name: "ghost"}}})

	resp := agg.response("m")
	assert.Empty(t, resp.ToolCalls)
}
