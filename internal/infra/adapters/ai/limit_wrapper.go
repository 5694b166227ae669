package ai

import (
	"context"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.AssistantAdapter = (*limitedAI)(nil)

type limitedAI struct {
	inner adapter.AssistantAdapter
	sem   chan struct{}
}

// NewLimitedAI caps concurrent calls to inner. Waiting callers give up when
// their ctx ends.
func NewLimitedAI(inner adapter.AssistantAdapter, maxConcurrent int) adapter.AssistantAdapter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedAI{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedAI) Name() string { return l.inner.Name() }

func (l *limitedAI) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedAI) CreateConversation(ctx context.Context) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-l.sem }()
	return l.inner.CreateConversation(ctx)
}

func (l *limitedAI) SendMessage(ctx context.Context, conversationID string, history []model.Message, query string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-l.sem }()
	return l.inner.SendMessage(ctx, conversationID, history, query)
}
