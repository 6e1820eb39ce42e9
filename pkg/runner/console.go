package runner

import (
	"fmt"
	"io"
	"os"

	"github.com/hqai/agentkit/pkg/backend"
)

// ConsoleCallbacks writes streamed output to a writer with plain-text
// section headers. It prints reasoning under a "thinking" header and
// content under an "assistant" header, switching headers when the stream
// changes channels.
type ConsoleCallbacks struct {
	Out io.Writer

	stage Stage
}

// NewConsoleCallbacks returns callbacks writing to stdout.
func NewConsoleCallbacks() *ConsoleCallbacks {
	return &ConsoleCallbacks{Out: os.Stdout}
}

func (c *ConsoleCallbacks) OnStreamStart() {
	c.stage = StagePending
}

func (c *ConsoleCallbacks) OnReasoningDelta(text string) {
	if c.stage != StageReasoning {
		fmt.Fprint(c.Out, "\n[thinking]\n")
		c.stage = StageReasoning
	}
	fmt.Fprint(c.Out, text)
}

func (c *ConsoleCallbacks) OnContentDelta(text string) {
	if c.stage != StageContent {
		fmt.Fprint(c.Out, "\n[assistant]\n")
		c.stage = StageContent
	}
	fmt.Fprint(c.Out, text)
}

func (c *ConsoleCallbacks) OnToolCallDelta(delta backend.ToolCallDelta) {
	if c.stage != StageToolCalls {
		fmt.Fprint(c.Out, "\n[tools]\n")
		c.stage = StageToolCalls
	}
	if delta.Name != "" {
		fmt.Fprintf(c.Out, "\n%s ", delta.Name)
	}
	fmt.Fprint(c.Out, delta.Arguments)
}

func (c *ConsoleCallbacks) OnStreamEnd() {
	fmt.Fprintln(c.Out)
}

func (c *ConsoleCallbacks) OnResponse(resp *backend.Response) {
	if resp == nil {
		return
	}
	fmt.Fprintln(c.Out, resp.Content)
}
