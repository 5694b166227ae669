package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
)

var _ adapter.AssistantAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers locally for offline development. Replies contain a
// fenced block so the formatter has something to render.
type NoopAIAdapter struct {
	delay time.Duration
	log   *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &NoopAIAdapter{delay: 100 * time.Millisecond, log: logger}
}

func (a *NoopAIAdapter) Name() string { return "noop" }

func (a *NoopAIAdapter) CreateConversation(ctx context.Context) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	return "noop-" + uuid.NewString(), nil
}

func (a *NoopAIAdapter) SendMessage(ctx context.Context, conversationID string, history []model.Message, query string) (string, error) {
	if err := a.wait(ctx); err != nil {
		return "", err
	}
	a.log.Debug().Str("conversation_id", conversationID).Int("history", len(history)).Msg("[noop-ai] send")
	return fmt.Sprintf("You asked: %s\n\n```python\nprint(%q)\n```\n\n(noop assistant, %d earlier messages)", query, query, len(history)), nil
}

// wait simulates latency and respects ctx.
func (a *NoopAIAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(a.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
