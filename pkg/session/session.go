package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hqai/agentkit/internal/observability"
	"github.com/hqai/agentkit/pkg/backend"
	"github.com/hqai/agentkit/pkg/chat"
	"github.com/hqai/agentkit/pkg/hooks"
	"github.com/hqai/agentkit/pkg/tool"
	"github.com/rs/zerolog"
)

// Session owns one conversation: the ordered transcript, the tool registry
// with its declarations, and the configuration driving the orchestration
// loop. A session must be driven by at most one in-flight Call or CallStream
// at a time; concurrent calls must be serialized by the caller.
type Session struct {
	client       backend.Client
	config       AgentConfig
	id           string
	systemPrompt string
	messages     []chat.Message
	registry     *tool.Registry
	middleware   *hooks.Chain
	logger       zerolog.Logger
}

// Options configures a Session.
type Options struct {
	// Client is the LLM backend. Required.
	Client backend.Client

	// Config bounds the loop; zero value means DefaultAgentConfig.
	Config AgentConfig

	// SystemPrompt becomes the transcript's first message.
	SystemPrompt string

	// Tools are registered and their declarations generated once, here.
	Tools []tool.Definition

	// Middleware wraps every tool call, in order.
	Middleware []hooks.Middleware

	// Logger is the injected sink; zero value disables logging.
	Logger zerolog.Logger
}

const defaultSystemPrompt = "You are a helpful assistant."

// New creates a Session. The system prompt is pinned as the first message
// and survives ClearMessages.
func New(opts Options) (*Session, error) {
	observability.EnsureRegistered()

	if opts.Client == nil {
		return nil, fmt.Errorf("backend client is required")
	}

	config := opts.Config
	if config == (AgentConfig{}) {
		config = DefaultAgentConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	registry := tool.NewRegistry()
	for _, def := range opts.Tools {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	logger := opts.Logger.With().Str("session_id", id).Logger()

	s := &Session{
		client:       opts.Client,
		config:       config,
		id:           id,
		systemPrompt: systemPrompt,
		messages:     []chat.Message{{Role: chat.RoleSystem, Content: systemPrompt}},
		registry:     registry,
		middleware:   hooks.NewChain(opts.Middleware...),
		logger:       logger,
	}

	logger.Info().
		Str("model", config.Model).
		Int("tools", registry.Len()).
		Msg("Session created")

	return s, nil
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the session's immutable configuration.
func (s *Session) Config() AgentConfig {
	return s.config
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() chat.Transcript {
	return append(chat.Transcript(nil), s.messages...)
}

// Use appends tool middleware to the session's chain.
func (s *Session) Use(m hooks.Middleware) {
	s.middleware.Use(m)
}

// AddUserMessage appends a plain-text user message.
func (s *Session) AddUserMessage(content string) {
	s.append(chat.Message{Role: chat.RoleUser, Content: content})
}

// AddUserParts appends a multimodal user message.
func (s *Session) AddUserParts(parts ...chat.Part) {
	s.append(chat.Message{Role: chat.RoleUser, Parts: parts})
}

// AddSystemMessage appends an additional system message.
func (s *Session) AddSystemMessage(content string) {
	s.append(chat.Message{Role: chat.RoleSystem, Content: content})
}

// ClearMessages resets the transcript to the original system prompt.
func (s *Session) ClearMessages() {
	s.messages = []chat.Message{{Role: chat.RoleSystem, Content: s.systemPrompt}}
	observability.SetTranscriptLength(s.id, len(s.messages))
}

// SaveTranscript persists the transcript as an ordered JSON array. An empty
// path resolves to the default location for this session.
func (s *Session) SaveTranscript(path string) error {
	if path == "" {
		var err error
		path, err = chat.DefaultTranscriptPath(s.id)
		if err != nil {
			return err
		}
	}
	if err := chat.Transcript(s.messages).Save(path); err != nil {
		return err
	}
	s.logger.Debug().Str("path", path).Int("messages", len(s.messages)).Msg("Transcript saved")
	return nil
}

// RestoreTranscript replaces the transcript with a previously saved one. The
// loaded transcript must start with a system message.
func (s *Session) RestoreTranscript(path string) error {
	transcript, err := chat.LoadTranscript(path)
	if err != nil {
		return err
	}
	if len(transcript) == 0 || transcript[0].Role != chat.RoleSystem {
		return fmt.Errorf("transcript must start with a system message")
	}
	s.messages = transcript
	observability.SetTranscriptLength(s.id, len(s.messages))
	return nil
}

func (s *Session) append(msg chat.Message) {
	s.messages = append(s.messages, msg)
	observability.SetTranscriptLength(s.id, len(s.messages))
}

func (s *Session) buildRequest() backend.Request {
	return backend.Request{
		Model:          s.config.Model,
		Messages:       append([]chat.Message(nil), s.messages...),
		Tools:          s.registry.Descriptors(),
		Temperature:    s.config.Temperature,
		MaxTokens:      s.config.MaxTokens,
		Timeout:        s.config.Timeout,
		ResponseFormat: s.config.ResponseFormat,
	}
}
