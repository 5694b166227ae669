package adapter

import (
	"context"

	"maizey-chat/internal/domain/model"
)

// AssistantAdapter is the port for the remote assistant.
type AssistantAdapter interface {
	// Name is the provider label used in logs and metrics.
	Name() string

	// CreateConversation opens a remote conversation and returns its id.
	CreateConversation(ctx context.Context) (string, error)

	// SendMessage posts query to the conversation and returns the raw reply.
	// history holds the prior turns; stateful providers may ignore it.
	SendMessage(ctx context.Context, conversationID string, history []model.Message, query string) (string, error)
}

// TokenCounter estimates token counts for metrics.
type TokenCounter interface {
	Count(text string) int
}
