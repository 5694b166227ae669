//go:build !integration

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/infra/memory"
	"maizey-chat/internal/infra/security"
)

// failingKV simulates an unreachable backend.
type failingKV struct{}

var errDown = errors.New("connection refused")

func (failingKV) Get(context.Context, string) ([]byte, error)                        { return nil, errDown }
func (failingKV) SetWithExpiry(context.Context, string, []byte, time.Duration) error { return errDown }
func (failingKV) Delete(context.Context, string) (bool, error)                       { return false, errDown }
func (failingKV) Keys(context.Context, string) ([]string, error)                     { return nil, errDown }
func (failingKV) Ping(context.Context) error                                         { return errDown }

func newTestHistory(t *testing.T) (*historyUC, *memory.KVStore) {
	t.Helper()
	kv := memory.NewKVStore()
	h := NewHistoryUseCase(kv, "memory", time.Hour, nil, logging.Nop()).(*historyUC)
	return h, kv
}

func conv(user, reply string) []model.Message {
	return []model.Message{
		model.NewMessage(model.RoleUser, user),
		model.NewMessage(model.RoleAssistant, reply),
	}
}

func TestHistory_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t)

	msgs := conv("Campus dining hours", "Most halls open at 7am.")
	h.Save(ctx, "s1", msgs)

	got := h.Load(ctx, "s1")
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	for i := range msgs {
		if got[i].ID != msgs[i].ID || got[i].Role != msgs[i].Role || got[i].Content != msgs[i].Content {
			t.Fatalf("message %d mismatch: %+v vs %+v", i, got[i], msgs[i])
		}
	}
}

func TestHistory_SaveIgnoresEmptyInput(t *testing.T) {
	ctx := context.Background()
	h, kv := newTestHistory(t)

	h.Save(ctx, "", conv("a", "b"))
	h.Save(ctx, "s1", nil)

	keys, _ := kv.Keys(ctx, model.KeyPattern)
	if len(keys) != 0 {
		t.Fatalf("expected nothing written, got %v", keys)
	}
}

func TestHistory_LoadUnknownIsEmpty(t *testing.T) {
	h, _ := newTestHistory(t)
	got := h.Load(context.Background(), "never-saved")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestHistory_DeleteThenLoad(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t)
	h.Save(ctx, "s1", conv("q", "a"))

	if !h.Delete(ctx, "s1") {
		t.Fatal("delete of existing record should succeed")
	}
	if got := h.Load(ctx, "s1"); len(got) != 0 {
		t.Fatalf("expected empty after delete, got %d", len(got))
	}
	if h.Delete(ctx, "s1") {
		t.Fatal("second delete should report false")
	}
}

func TestHistory_ListRecentOrdersAndCaps(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t)

	base := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		h.now = func() time.Time { return ts }
		h.Save(ctx, fmt.Sprintf("s%d", i), conv(fmt.Sprintf("question %d", i), "ok"))
	}

	got := h.ListRecent(ctx, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(got))
	}
	for i, want := range []string{"s5", "s4", "s3", "s2"} {
		if got[i].SessionID != want {
			t.Fatalf("entry %d: want %s got %s", i, want, got[i].SessionID)
		}
		if got[i].MessageCount != 2 {
			t.Fatalf("entry %d: message count %d", i, got[i].MessageCount)
		}
	}
	if got[0].Title != "question 5" {
		t.Fatalf("unexpected title %q", got[0].Title)
	}
}

func TestHistory_ListRecentSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	h, kv := newTestHistory(t)
	h.Save(ctx, "good", conv("hello", "hi"))
	_ = kv.SetWithExpiry(ctx, model.SessionKey("bad"), []byte("{not json"), time.Hour)

	got := h.ListRecent(ctx, 10)
	if len(got) != 1 || got[0].SessionID != "good" {
		t.Fatalf("expected only the readable record, got %+v", got)
	}
	if msgs := h.Load(ctx, "bad"); len(msgs) != 0 {
		t.Fatal("corrupt record should load as empty")
	}
}

func TestHistory_TitleFallbackAndTruncation(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHistory(t)

	h.Save(ctx, "long", []model.Message{model.NewMessage(model.RoleUser, strings.Repeat("x", 60))})
	h.Save(ctx, "bot", []model.Message{model.NewMessage(model.RoleAssistant, "welcome")})

	titles := map[string]string{}
	for _, s := range h.ListRecent(ctx, 10) {
		titles[s.SessionID] = s.Title
	}
	if titles["long"] != strings.Repeat("x", 50)+"..." {
		t.Fatalf("unexpected truncated title %q", titles["long"])
	}
	if titles["bot"] != model.DefaultTitle {
		t.Fatalf("expected fallback title, got %q", titles["bot"])
	}
}

func TestHistory_ClearAll(t *testing.T) {
	ctx := context.Background()
	h, kv := newTestHistory(t)
	h.Save(ctx, "a", conv("1", "1"))
	h.Save(ctx, "b", conv("2", "2"))
	_ = kv.SetWithExpiry(ctx, "rate_limit:send:x", []byte("1"), time.Hour)

	if !h.ClearAll(ctx) {
		t.Fatal("clear all should succeed")
	}
	if got := h.ListRecent(ctx, 10); len(got) != 0 {
		t.Fatalf("expected empty list after clear, got %d", len(got))
	}
	if _, err := kv.Get(ctx, "rate_limit:send:x"); err != nil {
		t.Fatal("clear all must only touch chat records")
	}
}

func TestHistory_EncryptedRecords(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	sealed := NewHistoryUseCase(kv, "memory", time.Hour, enc, logging.Nop())
	sealed.Save(ctx, "secret", conv("my uniqname is jdoe", "noted"))

	raw, _ := kv.Get(ctx, model.SessionKey("secret"))
	if !security.IsSealed(raw) || strings.Contains(string(raw), "jdoe") {
		t.Fatalf("record not sealed: %q", raw)
	}
	if got := sealed.Load(ctx, "secret"); len(got) != 2 {
		t.Fatalf("expected decrypted round trip, got %d", len(got))
	}

	// plaintext records stay readable once a key is configured
	plain := NewHistoryUseCase(kv, "memory", time.Hour, nil, logging.Nop())
	plain.Save(ctx, "open", conv("a", "b"))
	if got := sealed.Load(ctx, "open"); len(got) != 2 {
		t.Fatal("plaintext record should be readable by the sealing store")
	}
	// and without the key a sealed record reads as absent
	if got := plain.Load(ctx, "secret"); len(got) != 0 {
		t.Fatal("sealed record must not decode without a key")
	}
}

func TestHistory_UnavailableBackendNeverFails(t *testing.T) {
	ctx := context.Background()
	for name, h := range map[string]HistoryUseCase{
		"failing": NewHistoryUseCase(failingKV{}, "redis", time.Hour, nil, logging.Nop()),
		"stub":    NewHistoryUseCase(nil, "none", time.Hour, nil, logging.Nop()),
	} {
		t.Run(name, func(t *testing.T) {
			h.Save(ctx, "s1", conv("q", "a"))
			if got := h.Load(ctx, "s1"); got == nil || len(got) != 0 {
				t.Fatalf("load: %#v", got)
			}
			if got := h.ListRecent(ctx, 4); got == nil || len(got) != 0 {
				t.Fatalf("list: %#v", got)
			}
			if h.Delete(ctx, "s1") {
				t.Fatal("delete should be false")
			}
			if h.ClearAll(ctx) {
				t.Fatal("clear all should be false")
			}
		})
	}
	if NewHistoryUseCase(nil, "none", 0, nil, nil).Available() {
		t.Fatal("stub must report unavailable")
	}
}
