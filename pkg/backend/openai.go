package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hqai/agentkit/pkg/chat"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient adapts the OpenAI chat-completions API (and OpenAI-compatible
// servers such as local gpt-oss serving) to the backend contract.
type OpenAIClient struct {
	client   openai.Client
	provider string
}

// NewOpenAI creates a client against the hosted OpenAI API.
func NewOpenAI(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client:   openai.NewClient(option.WithAPIKey(apiKey)),
		provider: "openai",
	}
}

// NewOpenAICompatible creates a client against an OpenAI-compatible server.
func NewOpenAICompatible(baseURL, apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client:   openai.NewClient(option.WithBaseURL(baseURL), option.WithAPIKey(apiKey)),
		provider: "openai-compatible",
	}
}

// Provider returns the provider name.
func (c *OpenAIClient) Provider() string {
	return c.provider
}

// CreateChatCompletion performs one non-streaming call.
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req Request) (*Response, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	response, err := c.client.Chat.Completions.New(ctx, params, requestOptions(req)...)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]
	out := &Response{
		Content: choice.Message.Content,
		Model:   response.Model,
		Usage: Usage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        ensureCallID(tc.ID),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return out, nil
}

// StreamChatCompletion opens a fragment stream for one call.
func (c *OpenAIClient) StreamChatCompletion(ctx context.Context, req Request) (Stream, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	inner := c.client.Chat.Completions.NewStreaming(ctx, params, requestOptions(req)...)
	return &openaiStream{inner: inner}, nil
}

func (c *OpenAIClient) buildParams(req Request) (openai.ChatCompletionNewParams, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Text()))
		case chat.RoleUser:
			if len(msg.Parts) > 0 {
				parts, err := contentParts(msg.Parts)
				if err != nil {
					return openai.ChatCompletionNewParams{}, err
				}
				messages = append(messages, openai.UserMessage(parts))
				continue
			}
			messages = append(messages, openai.UserMessage(msg.Content))
		case chat.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					})
				}
				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
				continue
			}
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case chat.RoleTool:
			messages = append(messages, openai.ToolMessage(msg.ToolCallID, msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.ResponseFormat == ResponseFormatJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, descriptor := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        descriptor.Name,
					Description: openai.String(descriptor.Description),
					Parameters:  openai.FunctionParameters(descriptor.Parameters),
				},
			})
		}
		params.Tools = tools
	}

	return params, nil
}

func requestOptions(req Request) []option.RequestOption {
	if req.Timeout <= 0 {
		return nil
	}
	return []option.RequestOption{option.WithRequestTimeout(req.Timeout)}
}

func contentParts(parts []chat.Part) ([]openai.ChatCompletionContentPartUnionParam, error) {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case chat.PartTypeText:
			out = append(out, openai.TextContentPart(part.Text))
		case chat.PartTypeImage:
			dataURL, err := encodeImageFile(part.ImagePath)
			if err != nil {
				// Degrade to a textual note rather than failing the turn.
				out = append(out, openai.TextContentPart(fmt.Sprintf("[image %s unavailable: %v]", part.ImagePath, err)))
				continue
			}
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL,
			}))
		default:
			return nil, fmt.Errorf("unsupported content part type %q", part.Type)
		}
	}
	return out, nil
}

func encodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mediaType := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mediaType = "image/jpeg"
	case ".gif":
		mediaType = "image/gif"
	case ".webp":
		mediaType = "image/webp"
	}

	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ensureCallID keeps the provider id when present. Some OpenAI-compatible
// servers omit tool-call ids; a synthesized one keeps the 1:1 mapping
// between calls and tool results intact.
func ensureCallID(id string) string {
	if id != "" {
		return id
	}
	generated, err := gonanoid.New()
	if err != nil {
		return "call_fallback"
	}
	return "call_" + generated
}

type openaiStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	current Fragment
}

func (s *openaiStream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		s.current = fragmentFromChunk(chunk)
		return true
	}
	return false
}

func (s *openaiStream) Current() Fragment {
	return s.current
}

func (s *openaiStream) Err() error {
	return s.inner.Err()
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

func fragmentFromChunk(chunk openai.ChatCompletionChunk) Fragment {
	delta := chunk.Choices[0].Delta

	frag := Fragment{Content: delta.Content}

	// Reasoning-capable servers attach a non-standard "reasoning" field.
	if field, ok := delta.JSON.ExtraFields["reasoning"]; ok && field.Valid() {
		var reasoning string
		if err := json.Unmarshal([]byte(field.Raw()), &reasoning); err == nil {
			frag.Reasoning = reasoning
		}
	}

	for _, tc := range delta.ToolCalls {
		frag.ToolCalls = append(frag.ToolCalls, ToolCallDelta{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return frag
}
