// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
	derror "maizey-chat/internal/error"
)

var _ adapter.AssistantAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter replays the chat history into a fresh SDK chat per send.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) Name() string { return "gemini" }

func (g *GeminiAdapter) CreateConversation(ctx context.Context) (string, error) {
	return "local-" + uuid.NewString(), nil
}

func (g *GeminiAdapter) SendMessage(ctx context.Context, _ string, history []model.Message, query string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if g.maxOut > 0 {
		cfg.MaxOutputTokens = int32(g.maxOut)
	}
	chat, err := g.client.Chats.Create(ctx, g.defaultModel, cfg, toGenAIHistory(history))
	if err != nil {
		return "", g.wrap(err)
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: query})
	if err != nil {
		return "", g.wrap(err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				text += p.Text
			}
		}
	}
	if text == "" {
		return "", derror.ErrEmptyReply
	}
	return text, nil
}

func (g *GeminiAdapter) wrap(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &derror.StatusError{Op: "gemini chat", Code: apiErr.Code, Body: apiErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini chat: %w", derror.ErrAssistantTimeout)
	}
	return fmt.Errorf("gemini chat: %w", err)
}

func toGenAIHistory(msgs []model.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}
