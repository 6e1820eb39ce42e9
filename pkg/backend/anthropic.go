package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/hqai/agentkit/pkg/chat"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient adapts the Anthropic Messages API to the backend contract.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropic creates a client against the Anthropic API.
func NewAnthropic(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Provider returns the provider name.
func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// CreateChatCompletion performs one non-streaming call.
func (c *AnthropicClient) CreateChatCompletion(ctx context.Context, req Request) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	response, err := c.client.Messages.New(ctx, params, anthropicRequestOptions(req)...)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Model: string(response.Model),
		Usage: Usage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}

	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += b.Text
		case anthropic.ThinkingBlock:
			out.Reasoning += b.Thinking
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: b.JSON.Input.Raw(),
			})
		}
	}

	return out, nil
}

// StreamChatCompletion opens a fragment stream for one call.
func (c *AnthropicClient) StreamChatCompletion(ctx context.Context, req Request) (Stream, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	inner := c.client.Messages.NewStreaming(ctx, params, anthropicRequestOptions(req)...)
	return &anthropicStream{
		inner:        inner,
		blockToIndex: make(map[int64]int),
	}, nil
}

func (c *AnthropicClient) buildParams(req Request) (anthropic.MessageNewParams, error) {
	messages := []anthropic.MessageParam{}
	system := ""

	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleSystem:
			// Anthropic takes the system prompt out of band; later system
			// messages concatenate onto it.
			if system != "" {
				system += "\n\n"
			}
			system += msg.Text()
		case chat.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case chat.RoleUser:
			blocks, err := anthropicContentBlocks(msg)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case chat.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, descriptor := range req.Tools {
			toolParam := anthropic.ToolParam{
				Name:        descriptor.Name,
				Description: anthropic.String(descriptor.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: descriptor.Parameters["properties"],
				},
			}
			if required, ok := descriptor.Parameters["required"].([]string); ok {
				toolParam.InputSchema.Required = required
			} else if required, ok := descriptor.Parameters["required"].([]any); ok {
				names := make([]string, 0, len(required))
				for _, v := range required {
					if name, ok := v.(string); ok {
						names = append(names, name)
					}
				}
				toolParam.InputSchema.Required = names
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	return params, nil
}

func anthropicRequestOptions(req Request) []option.RequestOption {
	if req.Timeout <= 0 {
		return nil
	}
	return []option.RequestOption{option.WithRequestTimeout(req.Timeout)}
}

func anthropicContentBlocks(msg chat.Message) ([]anthropic.ContentBlockParamUnion, error) {
	if len(msg.Parts) == 0 {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}, nil
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case chat.PartTypeText:
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case chat.PartTypeImage:
			data, err := os.ReadFile(part.ImagePath)
			if err != nil {
				blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("[image %s unavailable: %v]", part.ImagePath, err)))
				continue
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(imageMediaType(part.ImagePath), base64.StdEncoding.EncodeToString(data)))
		default:
			return nil, fmt.Errorf("unsupported content part type %q", part.Type)
		}
	}
	return blocks, nil
}

func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// anthropicStream flattens Messages streaming events into fragments. The
// Messages API indexes tool_use blocks among all content blocks, so block
// indices are remapped to a dense tool-call ordinal as they first appear.
type anthropicStream struct {
	inner        *ssestream.Stream[anthropic.MessageStreamEventUnion]
	blockToIndex map[int64]int
	current      Fragment
}

func (s *anthropicStream) Next() bool {
	for s.inner.Next() {
		frag, ok := s.fragmentFromEvent(s.inner.Current())
		if !ok {
			continue
		}
		s.current = frag
		return true
	}
	return false
}

func (s *anthropicStream) Current() Fragment {
	return s.current
}

func (s *anthropicStream) Err() error {
	return s.inner.Err()
}

func (s *anthropicStream) Close() error {
	return s.inner.Close()
}

func (s *anthropicStream) fragmentFromEvent(event anthropic.MessageStreamEventUnion) (Fragment, bool) {
	switch ev := event.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			return Fragment{}, false
		}
		ordinal := len(s.blockToIndex)
		s.blockToIndex[ev.Index] = ordinal
		return Fragment{ToolCalls: []ToolCallDelta{{
			Index: ordinal,
			ID:    block.ID,
			Name:  block.Name,
		}}}, true
	case anthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return Fragment{Content: delta.Text}, true
		case anthropic.ThinkingDelta:
			return Fragment{Reasoning: delta.Thinking}, true
		case anthropic.InputJSONDelta:
			ordinal, ok := s.blockToIndex[ev.Index]
			if !ok {
				return Fragment{}, false
			}
			return Fragment{ToolCalls: []ToolCallDelta{{
				Index:     ordinal,
				Arguments: delta.PartialJSON,
			}}}, true
		}
		return Fragment{}, false
	default:
		return Fragment{}, false
	}
}
