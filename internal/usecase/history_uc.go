// File: internal/usecase/history_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/repository"
	"maizey-chat/internal/infra/metrics"
	"maizey-chat/internal/infra/security"
)

// HistoryUseCase persists whole chat records. No method returns an error:
// persistence failures are logged and reported as empty or false results.
type HistoryUseCase interface {
	Save(ctx context.Context, sessionID string, msgs []model.Message)
	Load(ctx context.Context, sessionID string) []model.Message
	ListRecent(ctx context.Context, limit int) []model.ChatSummary
	Delete(ctx context.Context, sessionID string) bool
	ClearAll(ctx context.Context) bool
	// Available reports whether a backend is attached.
	Available() bool
}

var (
	_ HistoryUseCase = (*historyUC)(nil)
	_ HistoryUseCase = noopHistory{}
)

type historyUC struct {
	kv      repository.KVStore
	backend string
	ttl     time.Duration
	enc     *security.EncryptionService
	log     *zerolog.Logger
	now     func() time.Time
}

// NewHistoryUseCase wraps kv. A nil kv yields a stub whose every operation
// is a no-op, so the app runs with in-memory history only.
func NewHistoryUseCase(kv repository.KVStore, backend string, ttl time.Duration, enc *security.EncryptionService, logger *zerolog.Logger) HistoryUseCase {
	if kv == nil {
		return noopHistory{}
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &historyUC{kv: kv, backend: backend, ttl: ttl, enc: enc, log: logger, now: time.Now}
}

func (h *historyUC) Available() bool { return true }

func (h *historyUC) Save(ctx context.Context, sessionID string, msgs []model.Message) {
	if sessionID == "" || len(msgs) == 0 {
		return
	}
	rec := model.ChatRecord{
		SessionID: sessionID,
		Messages:  msgs,
		Timestamp: h.now().UTC(),
	}
	key := model.SessionKey(sessionID)
	b, err := h.encode(key, &rec)
	if err != nil {
		h.fail("save", sessionID, err)
		return
	}
	if err := h.kv.SetWithExpiry(ctx, key, b, h.ttl); err != nil {
		h.fail("save", sessionID, err)
		return
	}
	metrics.IncStoreOp(h.backend, "save", "ok")
}

func (h *historyUC) Load(ctx context.Context, sessionID string) []model.Message {
	if sessionID == "" {
		return []model.Message{}
	}
	rec, err := h.read(ctx, model.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncStoreOp(h.backend, "load", "miss")
		} else {
			h.fail("load", sessionID, err)
		}
		return []model.Message{}
	}
	metrics.IncStoreOp(h.backend, "load", "ok")
	if rec.Messages == nil {
		return []model.Message{}
	}
	return rec.Messages
}

func (h *historyUC) ListRecent(ctx context.Context, limit int) []model.ChatSummary {
	out := []model.ChatSummary{}
	keys, err := h.kv.Keys(ctx, model.KeyPattern)
	if err != nil {
		h.fail("list", "", err)
		return out
	}
	for _, k := range keys {
		rec, err := h.read(ctx, k)
		if err != nil {
			// expired between scan and get, or unreadable
			continue
		}
		if rec.SessionID == "" {
			rec.SessionID, _ = model.SessionIDFromKey(k)
		}
		out = append(out, rec.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	metrics.IncStoreOp(h.backend, "list", "ok")
	return out
}

func (h *historyUC) Delete(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	ok, err := h.kv.Delete(ctx, model.SessionKey(sessionID))
	if err != nil {
		h.fail("delete", sessionID, err)
		return false
	}
	if !ok {
		metrics.IncStoreOp(h.backend, "delete", "miss")
		return false
	}
	metrics.IncStoreOp(h.backend, "delete", "ok")
	return true
}

// ClearAll deletes every chat record. Partial failure reports false; callers
// re-list to see what is left.
func (h *historyUC) ClearAll(ctx context.Context) bool {
	keys, err := h.kv.Keys(ctx, model.KeyPattern)
	if err != nil {
		h.fail("clear", "", err)
		return false
	}
	success := true
	for _, k := range keys {
		if _, err := h.kv.Delete(ctx, k); err != nil {
			h.fail("clear", k, err)
			success = false
		}
	}
	if success {
		metrics.IncStoreOp(h.backend, "clear", "ok")
	}
	return success
}

func (h *historyUC) read(ctx context.Context, key string) (*model.ChatRecord, error) {
	b, err := h.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return h.decode(key, b)
}

func (h *historyUC) encode(key string, rec *model.ChatRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if h.enc == nil {
		return b, nil
	}
	return h.enc.Seal(key, b)
}

// decode accepts plaintext JSON and, when a key is configured, sealed records.
func (h *historyUC) decode(key string, b []byte) (*model.ChatRecord, error) {
	if security.IsSealed(b) {
		if h.enc == nil {
			return nil, errors.New("encrypted record but no store key configured")
		}
		plain, err := h.enc.Open(key, b)
		if err != nil {
			return nil, err
		}
		b = plain
	}
	var rec model.ChatRecord
	if err := json.Unmarshal([]byte(strings.ToValidUTF8(string(b), "\uFFFD")), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (h *historyUC) fail(op, sessionID string, err error) {
	metrics.IncStoreOp(h.backend, op, "error")
	if h.log == nil {
		return
	}
	ev := h.log.Warn().Err(err).Str("backend", h.backend).Str("op", op)
	if sessionID != "" {
		ev = ev.Str("session_id", sessionID)
	}
	ev.Msg("history store operation failed")
}

// noopHistory stands in when no backend is configured or reachable.
type noopHistory struct{}

func (noopHistory) Save(context.Context, string, []model.Message)       {}
func (noopHistory) Load(context.Context, string) []model.Message        { return []model.Message{} }
func (noopHistory) ListRecent(context.Context, int) []model.ChatSummary { return []model.ChatSummary{} }
func (noopHistory) Delete(context.Context, string) bool                 { return false }
func (noopHistory) ClearAll(context.Context) bool                       { return false }
func (noopHistory) Available() bool                                     { return false }
