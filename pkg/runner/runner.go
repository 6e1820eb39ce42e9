// Package runner translates a session's streamed fragments into
// presentation callbacks. It holds no conversation state and performs no
// retries or tool logic; it is purely an observer layer over the
// orchestration loop.
package runner

import (
	"context"

	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/session"
)

// Stage marks which fragment channel the runner last routed, letting
// implementers detect channel transitions (e.g. reasoning to content) for
// presentation grouping.
type Stage int

const (
	StagePending Stage = iota
	StageReasoning
	StageContent
	StageToolCalls
)

// Callbacks receives presentation events. Streaming runs fire the five
// stream hooks; non-streaming runs fire only OnResponse.
type Callbacks interface {
	OnStreamStart()
	OnReasoningDelta(text string)
	OnContentDelta(text string)
	OnToolCallDelta(delta backend.ToolCallDelta)
	OnStreamEnd()
	OnResponse(resp *backend.Response)
}

// Runner wraps a Session with a Callbacks implementation.
type Runner struct {
	session   *session.Session
	callbacks Callbacks
	stage     Stage
}

// New creates a Runner.
func New(s *session.Session, callbacks Callbacks) *Runner {
	return &Runner{session: s, callbacks: callbacks}
}

// Stage returns the channel marker of the current (or last) streaming run.
func (r *Runner) Stage() Stage {
	return r.stage
}

// Run drives a non-streaming call and hands the terminal response to
// OnResponse.
func (r *Runner) Run(ctx context.Context, userMessage string) (*backend.Response, error) {
	resp, err := r.session.Call(ctx, userMessage)
	if err != nil {
		return resp, err
	}
	r.callbacks.OnResponse(resp)
	return resp, nil
}

// RunStream drives a streaming call, routing each fragment channel to its
// callback as it arrives, and returns the terminal response.
func (r *Runner) RunStream(ctx context.Context, userMessage string) (*backend.Response, error) {
	r.stage = StagePending
	r.callbacks.OnStreamStart()

	call := r.session.CallStream(ctx, userMessage)
	for frag := range call.Fragments() {
		if frag.Reasoning != "" {
			r.stage = StageReasoning
			r.callbacks.OnReasoningDelta(frag.Reasoning)
		}
		if frag.Content != "" {
			r.stage = StageContent
			r.callbacks.OnContentDelta(frag.Content)
		}
		for _, delta := range frag.ToolCalls {
			r.stage = StageToolCalls
			r.callbacks.OnToolCallDelta(delta)
		}
	}

	r.callbacks.OnStreamEnd()
	return call.Wait()
}
