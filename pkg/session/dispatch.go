package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hqai/agentkit/internal/observability"
	"github.com/hqai/agentkit/pkg/chat"
)

// dispatchToolCalls executes a batch of tool calls strictly in order. A
// failing call never aborts the batch: every record yields exactly one
// tool-role message carrying its result (or a local error string), so the
// backend always sees a 1:1, order-preserving mapping between the calls it
// emitted and the results it gets back.
func (s *Session) dispatchToolCalls(ctx context.Context, calls []chat.ToolCall) {
	for _, call := range calls {
		start := time.Now()
		result, ok := s.executeToolCall(ctx, call)
		observability.RecordToolExecution(call.Name, time.Since(start), ok)

		s.logger.Debug().
			Str("tool", call.Name).
			Str("tool_call_id", call.ID).
			Bool("ok", ok).
			Msg("Tool call dispatched")

		s.append(chat.Message{
			Role:       chat.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}
}

// executeToolCall runs one tool call through the full pipeline: argument
// parse, registry lookup, schema validation, before-hooks, invocation,
// after-hooks, stringification. Every failure is recovered into an error
// string result; the second return reports whether the call succeeded.
func (s *Session) executeToolCall(ctx context.Context, call chat.ToolCall) (string, bool) {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return fmt.Sprintf("error: failed to parse arguments for %s: %v", call.Name, err), false
	}

	def, found := s.registry.Lookup(call.Name)
	if !found {
		return fmt.Sprintf("error: tool %s not found", call.Name), false
	}

	if err := s.registry.Validate(call.Name, args); err != nil {
		return fmt.Sprintf("error: arguments for %s rejected: %v", call.Name, err), false
	}

	args = s.middleware.Before(call.Name, args, s)

	result, err := invokeTool(ctx, def.Handler, args)

	ok := err == nil
	var out any
	if err != nil {
		out = fmt.Sprintf("error: tool %s failed: %v", call.Name, err)
	} else {
		out = result
	}

	out = s.middleware.After(out, call.Name, s)

	return stringify(out), ok
}

// invokeTool calls the handler, converting a panic into an error so one
// misbehaving tool cannot take down the loop.
func invokeTool(ctx context.Context, handler func(context.Context, map[string]any) (any, error), args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, args)
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case nil:
		return ""
	case fmt.Stringer:
		return value.String()
	case error:
		return value.Error()
	default:
		if data, err := json.Marshal(value); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", value)
	}
}
