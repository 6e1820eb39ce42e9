package chat

import (
	"encoding/json"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Part types for multimodal content.
const (
	PartTypeText  = "text"
	PartTypeImage = "image"
)

// Part is one typed element of a multimodal message body.
type Part struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ImagePart builds an image part referencing a local file.
func ImagePart(path string) Part {
	return Part{Type: PartTypeImage, ImagePath: path}
}

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON string as emitted by the backend; it is parsed only at dispatch.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type toolCallJSON struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// MarshalJSON serializes the call in the nested function-call wire shape.
func (tc ToolCall) MarshalJSON() ([]byte, error) {
	var out toolCallJSON
	out.ID = tc.ID
	out.Type = "function"
	out.Function.Name = tc.Name
	out.Function.Arguments = tc.Arguments
	return json.Marshal(out)
}

// UnmarshalJSON accepts the nested function-call wire shape.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var in toolCallJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	tc.ID = in.ID
	tc.Name = in.Function.Name
	tc.Arguments = in.Function.Arguments
	return nil
}

// Message is a single conversation turn. Content carries plain text; Parts,
// when non-empty, carries an ordered multimodal body instead and takes
// precedence during serialization. Tool-role messages link back to their
// originating call through ToolCallID.
type Message struct {
	Role       string
	Content    string
	Parts      []Part
	ToolCalls  []ToolCall
	ToolCallID string
}

// Text returns the textual body of the message. For multimodal messages it
// concatenates the text parts in order.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	text := ""
	for _, part := range m.Parts {
		if part.Type == PartTypeText {
			text += part.Text
		}
	}
	return text
}

type messageJSON struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

// MarshalJSON emits content as a plain string, or as an ordered part array
// for multimodal messages.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		Role:       m.Role,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}

	var (
		content []byte
		err     error
	)
	if len(m.Parts) > 0 {
		content, err = json.Marshal(m.Parts)
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	out.Content = content

	return json.Marshal(out)
}

// UnmarshalJSON accepts both string and part-array content bodies.
func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	m.Role = in.Role
	m.ToolCalls = in.ToolCalls
	m.ToolCallID = in.ToolCallID
	m.Content = ""
	m.Parts = nil

	if len(in.Content) == 0 || string(in.Content) == "null" {
		return nil
	}
	if in.Content[0] == '[' {
		var parts []Part
		if err := json.Unmarshal(in.Content, &parts); err != nil {
			return fmt.Errorf("invalid multimodal content: %w", err)
		}
		m.Parts = parts
		return nil
	}
	if err := json.Unmarshal(in.Content, &m.Content); err != nil {
		return fmt.Errorf("invalid content: %w", err)
	}
	return nil
}
