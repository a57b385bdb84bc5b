// Package genai provides the language-model collaborator using the OpenAI
// API.
//
// The orchestrator hands it the effective text, the routed intent, a history
// window and the assembled context blocks; it returns one reply plus metadata
// describing which path produced it. The guided-retry policy lives in the
// pipeline, not here.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lacomiqueria/chatbot/internal/models"
)

// ErrNoChoicesReturned indicates the API answered without any choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// LLM path markers reported in reply metadata. A non-empty path prefixed
// "fallback_" signals a degraded path and triggers the guided retry upstream.
const (
	PathPrimary       = "openai_chat"
	FallbackPrefix    = "fallback_"
	PathFallbackEmpty = FallbackPrefix + "empty_completion"
)

// Request is one language-model invocation.
type Request struct {
	Text    string
	Intent  string
	History []models.Turn // newest first, as read from the store
	Blocks  []models.ContextBlock
}

// ReplyMeta carries the path metadata of a reply.
type ReplyMeta struct {
	LLMPath        string `json:"llm_path,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// IsFallback reports whether the reply self-reports a degraded path.
func (m ReplyMeta) IsFallback() bool {
	return m.LLMPath != "" && strings.HasPrefix(m.LLMPath, FallbackPrefix)
}

// Reply is the language-model collaborator's answer for one turn.
type Reply struct {
	Message string
	Meta    ReplyMeta
}

// ClientInterface is the language-model collaborator contract.
type ClientInterface interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// chatService is the minimal chat-completions surface, extracted so tests can
// substitute a mock.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the OpenAI SDK service to chatService.
type openaiChatService struct {
	svc openai.ChatCompletionService
}

func (s openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	if resp == nil {
		return openai.ChatCompletion{}, ErrNoChoicesReturned
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey       string
	Model        string
	SystemPrompt string
	HistoryLimit int
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly.
func WithAPIKey(key string) Option { return func(o *Opts) { o.APIKey = key } }

// WithModel overrides the chat model.
func WithModel(model string) Option { return func(o *Opts) { o.Model = model } }

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option { return func(o *Opts) { o.SystemPrompt = prompt } }

// WithHistoryLimit caps how many history turns are sent to the model.
func WithHistoryLimit(n int) Option { return func(o *Opts) { o.HistoryLimit = n } }

const defaultSystemPrompt = "Sos el asistente de atención al cliente de La Comiquería, " +
	"una tienda argentina de cómics y manga. Respondé en español rioplatense, corto y " +
	"concreto, usando solamente la información de contexto provista. Si no sabés algo, " +
	"decilo y ofrecé derivar a una persona."

const defaultHistoryLimit = 10

// Client wraps the OpenAI chat-completions service.
type Client struct {
	chat         chatService
	model        string
	systemPrompt string
	historyLimit int
}

var _ ClientInterface = (*Client)(nil)

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:         openaiChatService{svc: cli.Chat.Completions},
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

// Generate produces one reply for the turn.
func (c *Client) Generate(ctx context.Context, req Request) (Reply, error) {
	slog.Debug("genai generate", "intent", req.Intent, "history", len(req.History), "blocks", len(req.Blocks))

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: c.buildMessages(req),
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrNoChoicesReturned
	}

	message := strings.TrimSpace(resp.Choices[0].Message.Content)
	meta := ReplyMeta{LLMPath: PathPrimary}
	if message == "" {
		meta = ReplyMeta{LLMPath: PathFallbackEmpty, FallbackReason: "empty completion"}
	}

	slog.Debug("genai reply", "path", meta.LLMPath, "length", len(message))
	return Reply{Message: message, Meta: meta}, nil
}

// buildMessages assembles system prompt, context blocks, the history window
// (oldest first, as the API expects) and the inbound text.
func (c *Client) buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(c.systemPrompt),
	}

	for _, block := range req.Blocks {
		messages = append(messages, openai.SystemMessage(
			fmt.Sprintf("[contexto:%s]\n%s", block.ContextType, block.ContextPayload)))
	}

	history := req.History
	if len(history) > c.historyLimit {
		history = history[:c.historyLimit]
	}
	for i := len(history) - 1; i >= 0; i-- {
		turn := history[i]
		switch turn.Sender {
		case models.SenderUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case models.SenderBot:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}

	messages = append(messages, openai.UserMessage(req.Text))
	return messages
}
