//go:build !integration

package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	a := NewMessage(RoleUser, "hi")
	b := NewMessage(RoleUser, "hi")
	if a.ID == "" || b.ID == "" {
		t.Fatal("expected message ids to be set")
	}
	if a.ID == b.ID {
		t.Fatal("identical content must still get distinct ids")
	}
	if time.Since(a.Timestamp) > time.Second {
		t.Error("timestamp too far from now")
	}
}

func TestChatRecordTitle(t *testing.T) {
	long := strings.Repeat("a", 60)
	tests := []struct {
		name string
		msgs []Message
		want string
	}{
		{"no messages", nil, DefaultTitle},
		{"assistant only", []Message{{Role: RoleAssistant, Content: "hello"}}, DefaultTitle},
		{"short user message", []Message{{Role: RoleAssistant, Content: "x"}, {Role: RoleUser, Content: "Campus dining hours"}}, "Campus dining hours"},
		{"exactly fifty", []Message{{Role: RoleUser, Content: strings.Repeat("b", 50)}}, strings.Repeat("b", 50)},
		{"truncated", []Message{{Role: RoleUser, Content: long}}, strings.Repeat("a", 50) + "..."},
		{"first user wins", []Message{{Role: RoleUser, Content: "one"}, {Role: RoleUser, Content: "two"}}, "one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ChatRecord{Messages: tt.msgs}
			if got := r.Title(); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionKeyRoundTrip(t *testing.T) {
	key := SessionKey("abc")
	if key != "chat:abc" {
		t.Fatalf("unexpected key %q", key)
	}
	id, ok := SessionIDFromKey(key)
	if !ok || id != "abc" {
		t.Fatalf("SessionIDFromKey(%q) = %q,%v", key, id, ok)
	}
	if _, ok := SessionIDFromKey("rate_limit:1"); ok {
		t.Fatal("foreign key must not parse")
	}
}

func TestLastAssistant(t *testing.T) {
	msgs := []Message{
		{ID: "1", Role: RoleUser, Content: "q1"},
		{ID: "2", Role: RoleAssistant, Content: "a1"},
		{ID: "3", Role: RoleUser, Content: "q2"},
	}
	m, ok := LastAssistant(msgs)
	if !ok || m.ID != "2" {
		t.Fatalf("expected a1, got %+v ok=%v", m, ok)
	}
	if _, ok := LastAssistant(msgs[:1]); ok {
		t.Fatal("no assistant message expected")
	}
}
