package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// KeyPrefix namespaces chat records in the key-value store.
	KeyPrefix = "chat:"
	// KeyPattern matches every chat record.
	KeyPattern = KeyPrefix + "*"

	DefaultTitle  = "New Chat"
	titleMaxRunes = 50
	titleEllipsis = "..."
)

// Message is one entry of a conversation. Insertion order is conversation order.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
}

// NewMessage stamps a message with a ULID and the current time.
func NewMessage(role Role, content string) Message {
	now := time.Now().UTC()
	return Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
}

// ChatRecord is the persisted form of one browser session. Every save
// replaces the whole record.
type ChatRecord struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSummary is one row of the history list.
type ChatSummary struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
}

func SessionKey(sessionID string) string {
	return KeyPrefix + sessionID
}

// SessionIDFromKey strips the key prefix; ok is false for foreign keys.
func SessionIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, KeyPrefix), true
}

// Title derives a display title from the first user message.
func (r *ChatRecord) Title() string {
	for _, m := range r.Messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + titleEllipsis
		}
		return m.Content
	}
	return DefaultTitle
}

func (r *ChatRecord) Summary() ChatSummary {
	return ChatSummary{
		SessionID:    r.SessionID,
		Title:        r.Title(),
		Timestamp:    r.Timestamp,
		MessageCount: len(r.Messages),
	}
}

// LastAssistant returns the most recent assistant message.
func LastAssistant(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return Message{}, false
}
