package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
	derror "maizey-chat/internal/error"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AssistantAdapter = (*OpenAIAdapter)(nil)

// OpenAIAdapter uses Chat Completions. The API is stateless: conversations
// are local ids and every send replays the history.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	maxOut int
}

func NewOpenAIAdapter(apiKey, model, base string, maxOut int, timeout time.Duration) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		maxOut: maxOut,
	}, nil
}

func (o *OpenAIAdapter) Name() string { return "openai" }

func (o *OpenAIAdapter) CreateConversation(ctx context.Context) (string, error) {
	return "local-" + uuid.NewString(), nil
}

func (o *OpenAIAdapter) SendMessage(ctx context.Context, _ string, history []model.Message, query string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, m := range history {
		if m.Role == model.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(query))

	params := openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: msgs,
	}
	if o.maxOut > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.maxOut))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &derror.StatusError{Op: "openai chat", Code: apiErr.StatusCode, Body: apiErr.Message}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("openai chat: %w", derror.ErrAssistantTimeout)
		}
		return "", fmt.Errorf("openai chat: %w", err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", derror.ErrEmptyReply
}
