//go:build !integration

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/model"
	derror "maizey-chat/internal/error"
	"maizey-chat/internal/infra/adapters/tokenizer"
	"maizey-chat/internal/infra/i18n"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/infra/memory"
	"maizey-chat/internal/infra/worker"
)

// ---- Fakes ----

type fakeAssistant struct {
	creates    int32
	CreateFunc func(ctx context.Context) (string, error)
	SendFunc   func(ctx context.Context, convID string, history []model.Message, query string) (string, error)
}

func (f *fakeAssistant) Name() string { return "fake" }

func (f *fakeAssistant) CreateConversation(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.creates, 1)
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx)
	}
	return "conv-1", nil
}

func (f *fakeAssistant) SendMessage(ctx context.Context, convID string, history []model.Message, query string) (string, error) {
	if f.SendFunc != nil {
		return f.SendFunc(ctx, convID, history, query)
	}
	return "echo: " + query, nil
}

type countingRunner struct{ n int32 }

func (r *countingRunner) Submit(task worker.Task) error {
	atomic.AddInt32(&r.n, 1)
	return task(context.Background())
}

type lenCounter struct{}

func (lenCounter) Count(text string) int { return len(text) }

func newTestChat(t *testing.T, ai *fakeAssistant) (*chatUC, HistoryUseCase) {
	t.Helper()
	hist := NewHistoryUseCase(memory.NewKVStore(), "memory", time.Hour, nil, logging.Nop())
	uc := NewChatUseCase(ai, hist, nil, i18n.MustDefault(), lenCounter{}, ChatOptions{
		Timeout:      time.Second,
		BaseURL:      "https://umgpt.umich.edu",
		ProjectPK:    "0a1b2c3d-4e5f-6789-abcd-ef0123456789",
		TokenPresent: true,
	}, logging.Nop())
	return uc, hist
}

// ---- Tests ----

func TestSend_AppendsAndPersists(t *testing.T) {
	ctx := context.Background()
	ai := &fakeAssistant{}
	uc, hist := newTestChat(t, ai)
	st := NewSessionState()

	reply, err := uc.Send(ctx, st, "  Campus dining hours  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Role != model.RoleAssistant || reply.Content != "echo: Campus dining hours" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if reply.Tokens != len(reply.Content) {
		t.Fatalf("token count not recorded: %d", reply.Tokens)
	}

	snap := st.Snapshot()
	if len(snap.Messages) != 2 || snap.Messages[0].Role != model.RoleUser {
		t.Fatalf("unexpected state %+v", snap.Messages)
	}
	if snap.ConversationID != "conv-1" {
		t.Fatalf("conversation id not recorded: %q", snap.ConversationID)
	}
	if got := hist.Load(ctx, snap.SessionID); len(got) != 2 {
		t.Fatalf("expected persisted chat, got %d messages", len(got))
	}
}

func TestSend_ReusesConversationAndPassesHistory(t *testing.T) {
	ctx := context.Background()
	var lastHistory []model.Message
	ai := &fakeAssistant{
		SendFunc: func(ctx context.Context, convID string, history []model.Message, query string) (string, error) {
			if convID != "conv-1" {
				t.Errorf("unexpected conversation %q", convID)
			}
			lastHistory = history
			return "ok", nil
		},
	}
	uc, _ := newTestChat(t, ai)
	st := NewSessionState()

	_, _ = uc.Send(ctx, st, "first")
	_, _ = uc.Send(ctx, st, "second")

	if n := atomic.LoadInt32(&ai.creates); n != 1 {
		t.Fatalf("expected one conversation, created %d", n)
	}
	if len(lastHistory) != 2 || lastHistory[0].Content != "first" {
		t.Fatalf("expected prior turns as history, got %+v", lastHistory)
	}
}

func TestSend_BlankQuery(t *testing.T) {
	uc, _ := newTestChat(t, &fakeAssistant{})
	st := NewSessionState()
	if _, err := uc.Send(context.Background(), st, "   "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(st.Snapshot().Messages) != 0 {
		t.Fatal("blank query must not change state")
	}
}

func TestSend_RemoteErrorsBecomeReplyText(t *testing.T) {
	tests := []struct {
		name string
		ai   *fakeAssistant
		want string
	}{
		{
			name: "no conversation",
			ai: &fakeAssistant{CreateFunc: func(context.Context) (string, error) {
				return "", &derror.StatusError{Op: "create", Code: 403, Body: "forbidden"}
			}},
			want: "🔴 Could not start conversation with Maizey. Please try again.",
		},
		{
			name: "status",
			ai: &fakeAssistant{SendFunc: func(context.Context, string, []model.Message, string) (string, error) {
				return "", &derror.StatusError{Op: "send", Code: 500, Body: "boom"}
			}},
			want: "🔴 Failed to send message. Status: 500\nResponse: boom",
		},
		{
			name: "transport",
			ai: &fakeAssistant{SendFunc: func(context.Context, string, []model.Message, string) (string, error) {
				return "", errors.New("dial tcp: connection refused")
			}},
			want: "🔴 Error sending message: dial tcp: connection refused",
		},
		{
			name: "empty reply",
			ai: &fakeAssistant{SendFunc: func(context.Context, string, []model.Message, string) (string, error) {
				return "  ", nil
			}},
			want: "Sorry, no response received.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _ := newTestChat(t, tt.ai)
			st := NewSessionState()
			reply, err := uc.Send(context.Background(), st, "hello")
			if err != nil {
				t.Fatalf("remote failures must not surface as errors: %v", err)
			}
			if reply.Content != tt.want {
				t.Fatalf("got %q want %q", reply.Content, tt.want)
			}
			if n := len(st.Snapshot().Messages); n != 2 {
				t.Fatalf("expected error shown inline as assistant message, got %d messages", n)
			}
		})
	}
}

func TestSend_TimeoutIsDistinct(t *testing.T) {
	ai := &fakeAssistant{SendFunc: func(ctx context.Context, _ string, _ []model.Message, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	uc, _ := newTestChat(t, ai)
	uc.opts.Timeout = 20 * time.Millisecond

	reply, _ := uc.Send(context.Background(), NewSessionState(), "slow")
	if !strings.Contains(reply.Content, "did not respond within 20ms") {
		t.Fatalf("expected timeout text, got %q", reply.Content)
	}
}

func TestSend_UsesRunner(t *testing.T) {
	ctx := context.Background()
	hist := NewHistoryUseCase(memory.NewKVStore(), "memory", time.Hour, nil, logging.Nop())
	runner := &countingRunner{}
	uc := NewChatUseCase(&fakeAssistant{}, hist, runner, nil, nil, ChatOptions{}, nil)
	st := NewSessionState()

	_, _ = uc.Send(ctx, st, "hi")
	if atomic.LoadInt32(&runner.n) != 1 {
		t.Fatal("expected persistence through the runner")
	}
	if got := hist.Load(ctx, st.SessionID()); len(got) != 2 {
		t.Fatalf("expected saved chat, got %d", len(got))
	}
}

func TestSend_NewChatDuringSendKeepsStatesApart(t *testing.T) {
	ctx := context.Background()
	st := NewSessionState()
	started := make(chan struct{})
	release := make(chan struct{})
	ai := &fakeAssistant{SendFunc: func(context.Context, string, []model.Message, string) (string, error) {
		close(started)
		<-release
		return "late", nil
	}}
	uc, hist := newTestChat(t, ai)
	oldID := st.SessionID()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = uc.Send(ctx, st, "question")
	}()
	<-started
	uc.NewChat(st)
	close(release)
	<-done

	if n := len(st.Snapshot().Messages); n != 0 {
		t.Fatalf("new chat should stay empty, got %d messages", n)
	}
	if got := hist.Load(ctx, oldID); len(got) != 2 || got[1].Content != "late" {
		t.Fatalf("old chat should be persisted with the reply, got %+v", got)
	}
}

func TestNewChat_KeepsPersistedRecord(t *testing.T) {
	ctx := context.Background()
	uc, hist := newTestChat(t, &fakeAssistant{})
	st := NewSessionState()
	_, _ = uc.Send(ctx, st, "hello")
	oldID := st.SessionID()

	uc.NewChat(st)
	snap := st.Snapshot()
	if snap.SessionID == oldID || len(snap.Messages) != 0 || snap.ConversationID != "" {
		t.Fatalf("state not reset: %+v", snap)
	}
	if len(hist.Load(ctx, oldID)) != 2 {
		t.Fatal("new chat must not delete the old record")
	}
}

func TestLoadHistory(t *testing.T) {
	ctx := context.Background()
	ai := &fakeAssistant{}
	uc, hist := newTestChat(t, ai)
	hist.Save(ctx, "saved", []model.Message{
		model.NewMessage(model.RoleUser, "List rooms in Shapiro Library"),
		model.NewMessage(model.RoleAssistant, "Here they are"),
	})

	st := NewSessionState()
	_, _ = uc.Send(ctx, st, "something else")

	if uc.LoadHistory(ctx, st, "missing") {
		t.Fatal("loading an unknown chat should report false")
	}
	if !uc.LoadHistory(ctx, st, "saved") {
		t.Fatal("expected load to succeed")
	}
	snap := st.Snapshot()
	if snap.SessionID != "saved" || len(snap.Messages) != 2 || snap.ConversationID != "" {
		t.Fatalf("unexpected state after load: %+v", snap)
	}

	_, _ = uc.Send(ctx, st, "follow up")
	if n := atomic.LoadInt32(&ai.creates); n != 2 {
		t.Fatalf("loaded chat should open a new conversation, creates=%d", n)
	}
	if got := hist.Load(ctx, "saved"); len(got) != 4 {
		t.Fatalf("loaded chat should keep saving under its id, got %d", len(got))
	}
}

func TestLastReply(t *testing.T) {
	uc, _ := newTestChat(t, &fakeAssistant{})
	st := NewSessionState()
	if _, ok := uc.LastReply(st); ok {
		t.Fatal("empty chat has no reply")
	}
	_, _ = uc.Send(context.Background(), st, "one")
	_, _ = uc.Send(context.Background(), st, "two")
	if got, ok := uc.LastReply(st); !ok || got != "echo: two" {
		t.Fatalf("got %q %v", got, ok)
	}
}

func TestSelfTest(t *testing.T) {
	tests := []struct {
		name   string
		create func(context.Context) (string, error)
		want   SelfTestResult
	}{
		{"connected", nil, SelfTestResult{OK: true, Status: 201, Message: "API Connected"}},
		{"status", func(context.Context) (string, error) {
			return "", &derror.StatusError{Op: "create", Code: 401, Body: "bad token"}
		}, SelfTestResult{Status: 401, Message: "Status: 401"}},
		{"failed", func(context.Context) (string, error) {
			return "", errors.New("no such host")
		}, SelfTestResult{Message: "Connection Failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _ := newTestChat(t, &fakeAssistant{CreateFunc: tt.create})
			if got := uc.SelfTest(context.Background()); got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestDetails(t *testing.T) {
	uc, _ := newTestChat(t, &fakeAssistant{})
	st := NewSessionState()

	d := uc.Details(st)
	if d.Endpoint != "umgpt.umich.edu" || d.Status != "Standby" || !d.Persistence || !d.TokenPresent {
		t.Fatalf("unexpected details %+v", d)
	}
	if strings.Contains(d.Project, "ef0123456789") {
		t.Fatalf("project id should be redacted, got %q", d.Project)
	}

	_, _ = uc.Send(context.Background(), st, "hi")
	d = uc.Details(st)
	if d.Status != "Active Chat" || d.ConversationID != "conv-1" {
		t.Fatalf("unexpected active details %+v", d)
	}
}

// hangingBpeLoader stands in for a BPE download host that never answers.
type hangingBpeLoader struct{ release chan struct{} }

func (l hangingBpeLoader) LoadTiktokenBpe(string) (map[string]int, error) {
	<-l.release
	return nil, errors.New("unreachable")
}

func TestSend_TokenCountingNeverWaitsOnEncodingDownload(t *testing.T) {
	loader := hangingBpeLoader{release: make(chan struct{})}
	tiktoken.SetBpeLoader(loader)
	counter := tokenizer.New("gpt-4o")
	t.Cleanup(func() {
		close(loader.release)
		counter.Warm()
		<-counter.Ready()
		tiktoken.SetBpeLoader(tiktoken.NewDefaultBpeLoader())
	})

	hist := NewHistoryUseCase(memory.NewKVStore(), "memory", time.Hour, nil, logging.Nop())
	uc := NewChatUseCase(&fakeAssistant{}, hist, nil, i18n.MustDefault(), counter, ChatOptions{Timeout: time.Second}, logging.Nop())

	done := make(chan model.Message, 1)
	go func() {
		reply, _ := uc.Send(context.Background(), NewSessionState(), "Campus dining hours")
		done <- reply
	}()
	select {
	case reply := <-done:
		if reply.Content != "echo: Campus dining hours" {
			t.Fatalf("unexpected reply %q", reply.Content)
		}
		if reply.Tokens != tokenizer.Estimate(reply.Content) {
			t.Fatalf("expected estimated tokens while the encoding loads, got %d", reply.Tokens)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on the tokenizer")
	}
}
