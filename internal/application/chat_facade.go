package application

import (
	"context"
	"time"

	"maizey-chat/internal/domain/format"
	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/usecase"
)

// ChatFacade composes the chat and history use cases into the commands the
// web page and the terminal client offer. Replies are returned already split
// into display segments.
type ChatFacade struct {
	Chat      ChatUseCaseIface
	History   HistoryUseCaseIface
	Formatter format.Formatter
	Examples  []string

	// RecentLimit caps the history page; SidebarLimit the sidebar list.
	RecentLimit  int
	SidebarLimit int
}

func NewChatFacade(chat ChatUseCaseIface, history HistoryUseCaseIface, f format.Formatter, examples []string, recentLimit, sidebarLimit int) *ChatFacade {
	if recentLimit <= 0 {
		recentLimit = 10
	}
	if sidebarLimit <= 0 {
		sidebarLimit = 4
	}
	return &ChatFacade{
		Chat:         chat,
		History:      history,
		Formatter:    f,
		Examples:     examples,
		RecentLimit:  recentLimit,
		SidebarLimit: sidebarLimit,
	}
}

// MessageView is one message ready for rendering. Content keeps the raw text
// for the copy action.
type MessageView struct {
	ID        string           `json:"id"`
	Role      model.Role       `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp,omitempty"`
	Segments  []format.Segment `json:"segments"`
}

type ChatView struct {
	SessionID      string        `json:"session_id"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []MessageView `json:"messages"`
	Persistence    bool          `json:"persistence"`
}

func (f *ChatFacade) messageView(m model.Message) MessageView {
	v := MessageView{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Role == model.RoleAssistant {
		v.Segments = f.Formatter.Format(m.Content)
	} else {
		// user input is shown as typed
		v.Segments = []format.Segment{format.Text(m.Content)}
	}
	return v
}

// View renders the current chat.
func (f *ChatFacade) View(st *usecase.SessionState) ChatView {
	snap := st.Snapshot()
	out := ChatView{
		SessionID:      snap.SessionID,
		ConversationID: snap.ConversationID,
		Messages:       make([]MessageView, 0, len(snap.Messages)),
		Persistence:    f.History.Available(),
	}
	for _, m := range snap.Messages {
		out.Messages = append(out.Messages, f.messageView(m))
	}
	return out
}

// Send forwards query and returns the formatted reply.
func (f *ChatFacade) Send(ctx context.Context, st *usecase.SessionState, query string) (MessageView, error) {
	reply, err := f.Chat.Send(ctx, st, query)
	if err != nil {
		return MessageView{}, err
	}
	return f.messageView(reply), nil
}

func (f *ChatFacade) NewChat(st *usecase.SessionState) ChatView {
	f.Chat.NewChat(st)
	return f.View(st)
}

func (f *ChatFacade) Load(ctx context.Context, st *usecase.SessionState, sessionID string) (ChatView, bool) {
	if !f.Chat.LoadHistory(ctx, st, sessionID) {
		return ChatView{}, false
	}
	return f.View(st), true
}

// Recent lists persisted chats; limit <= 0 uses RecentLimit and larger
// values are capped by it.
func (f *ChatFacade) Recent(ctx context.Context, limit int) []model.ChatSummary {
	if limit <= 0 || limit > f.RecentLimit {
		limit = f.RecentLimit
	}
	return f.History.ListRecent(ctx, limit)
}

func (f *ChatFacade) Sidebar(ctx context.Context) []model.ChatSummary {
	return f.History.ListRecent(ctx, f.SidebarLimit)
}

func (f *ChatFacade) Delete(ctx context.Context, sessionID string) bool {
	return f.History.Delete(ctx, sessionID)
}

func (f *ChatFacade) ClearAll(ctx context.Context) bool {
	return f.History.ClearAll(ctx)
}

func (f *ChatFacade) LastReply(st *usecase.SessionState) (string, bool) {
	return f.Chat.LastReply(st)
}

func (f *ChatFacade) SelfTest(ctx context.Context) usecase.SelfTestResult {
	return f.Chat.SelfTest(ctx)
}

func (f *ChatFacade) Status(st *usecase.SessionState) usecase.ConnectionDetails {
	return f.Chat.Details(st)
}
