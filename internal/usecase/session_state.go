// File: internal/usecase/session_state.go
package usecase

import (
	"sync"

	"github.com/google/uuid"

	"maizey-chat/internal/domain/model"
)

// SessionState is the chat state of one browser session. Handlers receive it
// explicitly; there is no ambient "current chat".
type SessionState struct {
	mu             sync.RWMutex
	sendMu         sync.Mutex
	gen            uint64
	sessionID      string
	conversationID string
	messages       []model.Message
}

// NewSessionState starts an empty chat under a fresh session id.
func NewSessionState() *SessionState {
	return &SessionState{sessionID: uuid.NewString(), messages: []model.Message{}}
}

// Reset begins a new chat. The previous persisted record is left untouched.
func (s *SessionState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.sessionID = uuid.NewString()
	s.conversationID = ""
	s.messages = []model.Message{}
}

// Replace swaps in a persisted chat. The remote conversation is not
// restored, so the next send opens a new one.
func (s *SessionState) Replace(sessionID string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.sessionID = sessionID
	s.conversationID = ""
	s.messages = append([]model.Message(nil), msgs...)
}

// Snapshot is a copy of the state safe to hand to other goroutines.
type Snapshot struct {
	SessionID      string          `json:"session_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Messages       []model.Message `json:"messages"`
}

func (s *SessionState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SessionID:      s.sessionID,
		ConversationID: s.conversationID,
		Messages:       append([]model.Message{}, s.messages...),
	}
}

func (s *SessionState) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *SessionState) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationID
}

// current returns the generation together with a matching snapshot.
func (s *SessionState) current() (uint64, Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen, Snapshot{
		SessionID:      s.sessionID,
		ConversationID: s.conversationID,
		Messages:       append([]model.Message{}, s.messages...),
	}
}

// setConversation records the remote conversation id unless the chat was
// reset meanwhile.
func (s *SessionState) setConversation(gen uint64, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.conversationID = id
	}
}

// appendIfCurrent appends msgs when gen is still current and reports whether
// it did.
func (s *SessionState) appendIfCurrent(gen uint64, msgs ...model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.messages = append(s.messages, msgs...)
	return true
}
