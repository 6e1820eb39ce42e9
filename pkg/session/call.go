package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hqai/agentkit/internal/observability"
	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/chat"
)

// ErrIterationsExhausted reports that the iteration cap was reached before
// the model produced a terminal response. The response returned alongside it
// is the last one obtained and may still contain unresolved tool calls.
var ErrIterationsExhausted = errors.New("iteration budget exhausted")

// Call drives the non-streaming orchestration loop: request, dispatch any
// tool calls, repeat, until the model answers without tools (and, when a
// JSON response format is configured, with valid JSON content) or the
// iteration budget runs out. Backend failures are fatal for the call and are
// returned unwrapped of any retry.
func (s *Session) Call(ctx context.Context, userMessage string) (*backend.Response, error) {
	if userMessage != "" {
		s.AddUserMessage(userMessage)
	}

	var last *backend.Response
	for iteration := 0; iteration < s.config.MaxIterations; iteration++ {
		start := time.Now()
		resp, err := s.client.CreateChatCompletion(ctx, s.buildRequest())
		observability.RecordBackendCall(s.client.Provider(), time.Since(start), err == nil)
		if err != nil {
			return nil, fmt.Errorf("backend call failed: %w", err)
		}

		s.logResponse(iteration, resp)
		last = resp

		if s.advance(ctx, resp) {
			return resp, nil
		}
	}

	observability.RecordIterationsExhausted()
	s.logger.Warn().Int("max_iterations", s.config.MaxIterations).Msg("Iteration budget exhausted")
	return last, ErrIterationsExhausted
}

// advance applies one backend response to the transcript, dispatching tool
// calls when present. It reports whether the loop reached its terminal
// state.
func (s *Session) advance(ctx context.Context, resp *backend.Response) bool {
	if len(resp.ToolCalls) > 0 {
		s.append(chat.Message{
			Role:      chat.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		s.dispatchToolCalls(ctx, resp.ToolCalls)
		return false
	}

	if s.config.ResponseFormat == backend.ResponseFormatJSON {
		if err := validateJSONContent(resp.Content); err != nil {
			observability.RecordFormatRetry()
			s.logger.Debug().Err(err).Msg("Response failed JSON validation, requesting correction")
			s.append(chat.Message{Role: chat.RoleAssistant, Content: resp.Content})
			s.AddUserMessage(fmt.Sprintf(
				"The previous response was not valid JSON (%v). Respond again with only a valid JSON object.", err))
			return false
		}
	}

	if resp.Content != "" {
		s.append(chat.Message{Role: chat.RoleAssistant, Content: resp.Content})
	}
	return true
}

func (s *Session) logResponse(iteration int, resp *backend.Response) {
	s.logger.Debug().
		Int("iteration", iteration).
		Int("tool_calls", len(resp.ToolCalls)).
		Int("content_len", len(resp.Content)).
		Msg("Backend response received")
}

// validateJSONContent checks that content parses as JSON after stripping a
// leading/trailing fenced-code marker, a common formatting artifact in model
// output.
func validateJSONContent(content string) error {
	stripped := stripCodeFence(content)
	if stripped == "" {
		return fmt.Errorf("content is empty")
	}
	if !json.Valid([]byte(stripped)) {
		return fmt.Errorf("content is not valid JSON")
	}
	return nil
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 && !strings.ContainsAny(trimmed[:idx], "{[\"") {
		// Drop the language tag line (e.g. "json").
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// StreamCall is one in-flight streaming invocation. Fragments delivers every
// raw fragment as it arrives; Wait blocks until the loop finishes and
// returns the final response. Abandoning the fragment channel requires
// cancelling the context passed to CallStream, which halts further backend
// consumption.
type StreamCall struct {
	fragments chan backend.Fragment
	done      chan struct{}
	resp      *backend.Response
	err       error
}

// Fragments returns the raw fragment channel. It is closed when the call
// finishes.
func (c *StreamCall) Fragments() <-chan backend.Fragment {
	return c.fragments
}

// Wait blocks until the call finishes and returns the terminal response.
// The loop goroutine suspends on every fragment send, so Wait only returns
// once Fragments has been drained or the call's context cancelled; calling
// it with fragments pending and the context live blocks both sides.
func (c *StreamCall) Wait() (*backend.Response, error) {
	<-c.done
	return c.resp, c.err
}

func (c *StreamCall) finish(resp *backend.Response, err error) {
	c.resp = resp
	c.err = err
	close(c.fragments)
	close(c.done)
}

// CallStream drives the streaming variant of the orchestration loop. The
// transition semantics are identical to Call; the difference is that every
// raw fragment is forwarded to the returned StreamCall before it is folded
// into the aggregate.
func (s *Session) CallStream(ctx context.Context, userMessage string) *StreamCall {
	if userMessage != "" {
		s.AddUserMessage(userMessage)
	}

	call := &StreamCall{
		fragments: make(chan backend.Fragment),
		done:      make(chan struct{}),
	}
	go s.runStream(ctx, call)
	return call
}

func (s *Session) runStream(ctx context.Context, call *StreamCall) {
	var last *backend.Response

	for iteration := 0; iteration < s.config.MaxIterations; iteration++ {
		start := time.Now()
		stream, err := s.client.StreamChatCompletion(ctx, s.buildRequest())
		if err != nil {
			observability.RecordBackendCall(s.client.Provider(), time.Since(start), false)
			call.finish(nil, fmt.Errorf("backend call failed: %w", err))
			return
		}

		agg := newAggregator()
		for stream.Next() {
			frag := stream.Current()

			// Dual delivery: the consumer sees the raw fragment before it is
			// folded into the aggregate.
			select {
			case call.fragments <- frag:
			case <-ctx.Done():
				_ = stream.Close()
				call.finish(nil, ctx.Err())
				return
			}
			observability.RecordStreamFragment()

			agg.add(frag)
		}
		streamErr := stream.Err()
		_ = stream.Close()
		observability.RecordBackendCall(s.client.Provider(), time.Since(start), streamErr == nil)
		if streamErr != nil {
			call.finish(nil, fmt.Errorf("backend stream failed: %w", streamErr))
			return
		}

		resp := agg.response(s.config.Model)
		s.logResponse(iteration, resp)
		last = resp

		if s.advance(ctx, resp) {
			call.finish(resp, nil)
			return
		}
	}

	observability.RecordIterationsExhausted()
	s.logger.Warn().Int("max_iterations", s.config.MaxIterations).Msg("Iteration budget exhausted")
	call.finish(last, ErrIterationsExhausted)
}
