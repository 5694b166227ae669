// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
	derror "maizey-chat/internal/error"
	"maizey-chat/internal/infra/i18n"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/infra/metrics"
	"maizey-chat/internal/infra/worker"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	// Send appends the query and the assistant reply to st and persists the
	// chat in the background. Remote failures come back as reply text; the
	// only error is ErrInvalidArgument for a blank query.
	Send(ctx context.Context, st *SessionState, query string) (model.Message, error)
	NewChat(st *SessionState)
	// LoadHistory replaces st with a persisted chat; false when none exists.
	LoadHistory(ctx context.Context, st *SessionState, sessionID string) bool
	LastReply(st *SessionState) (string, bool)
	SelfTest(ctx context.Context) SelfTestResult
	Details(st *SessionState) ConnectionDetails
}

// Submitter accepts background tasks; *worker.Pool satisfies it.
type Submitter interface {
	Submit(task worker.Task) error
}

type SelfTestResult struct {
	OK      bool   `json:"ok"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

type ConnectionDetails struct {
	Provider       string `json:"provider"`
	Endpoint       string `json:"endpoint"`
	Project        string `json:"project"`
	TokenPresent   bool   `json:"token_present"`
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
	Persistence    bool   `json:"persistence"`
}

// ChatOptions carries the settings the chat flow needs from config.
type ChatOptions struct {
	Timeout      time.Duration
	BaseURL      string
	ProjectPK    string
	TokenPresent bool
	Dev          bool
}

type chatUC struct {
	ai      adapter.AssistantAdapter
	history HistoryUseCase
	runner  Submitter
	tr      *i18n.Translator
	tokens  adapter.TokenCounter
	opts    ChatOptions
	log     *zerolog.Logger
}

func NewChatUseCase(
	ai adapter.AssistantAdapter,
	history HistoryUseCase,
	runner Submitter,
	tr *i18n.Translator,
	tokens adapter.TokenCounter,
	opts ChatOptions,
	logger *zerolog.Logger,
) *chatUC {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if history == nil {
		history = noopHistory{}
	}
	if tr == nil {
		tr = i18n.MustDefault()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &chatUC{ai: ai, history: history, runner: runner, tr: tr, tokens: tokens, opts: opts, log: logger}
}

func (c *chatUC) Send(ctx context.Context, st *SessionState, query string) (model.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.Message{}, domain.ErrInvalidArgument
	}
	// one turn at a time per browser session
	st.sendMu.Lock()
	defer st.sendMu.Unlock()

	gen, snap := st.current()
	log := logging.With(logging.WithSessID(ctx, snap.SessionID), c.log)
	defer logging.TraceDuration(log, "ChatUC.Send")()

	userMsg := model.NewMessage(model.RoleUser, query)
	userMsg.Tokens = c.count(query)
	st.appendIfCurrent(gen, userMsg)

	reply := c.ask(ctx, log, st, gen, snap, query)

	botMsg := model.NewMessage(model.RoleAssistant, reply)
	botMsg.Tokens = c.count(reply)
	st.appendIfCurrent(gen, botMsg)
	if c.tokens != nil {
		metrics.AddTokens(c.ai.Name(), userMsg.Tokens, botMsg.Tokens)
	}

	full := append(snap.Messages, userMsg, botMsg)
	c.persist(snap.SessionID, full)
	return botMsg, nil
}

// ask returns the assistant reply, or the user-facing text for a failure.
func (c *chatUC) ask(ctx context.Context, log *zerolog.Logger, st *SessionState, gen uint64, snap Snapshot, query string) string {
	provider := c.ai.Name()
	convID := snap.ConversationID
	if convID == "" {
		cctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		id, err := c.ai.CreateConversation(cctx)
		cancel()
		if err != nil || id == "" {
			if isTimeout(err) {
				metrics.IncAssistantError(provider, "timeout")
				log.Warn().Err(err).Msg("create conversation timed out")
				return c.tr.T("err_timeout", c.opts.Timeout)
			}
			metrics.IncAssistantError(provider, "no_conversation")
			log.Warn().Err(err).Int("status", derror.StatusCode(err)).Msg("create conversation failed")
			return c.tr.T("err_no_conversation")
		}
		convID = id
		st.setConversation(gen, id)
		log.Info().Str("conversation_id", id).Msg("conversation created")
	}

	sctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	reply, err := c.ai.SendMessage(sctx, convID, snap.Messages, query)
	if err != nil {
		return c.describe(log, provider, err)
	}
	if strings.TrimSpace(reply) == "" {
		metrics.IncAssistantError(provider, "empty")
		return c.tr.T("err_empty_reply")
	}
	return reply
}

func (c *chatUC) describe(log *zerolog.Logger, provider string, err error) string {
	var se *derror.StatusError
	switch {
	case isTimeout(err):
		metrics.IncAssistantError(provider, "timeout")
		log.Warn().Err(err).Dur("timeout", c.opts.Timeout).Msg("assistant timed out")
		return c.tr.T("err_timeout", c.opts.Timeout)
	case errors.As(err, &se):
		metrics.IncAssistantError(provider, "status")
		log.Warn().Int("status", se.Code).Msg("assistant returned unexpected status")
		return c.tr.T("err_send_status", se.Code, se.Body)
	case errors.Is(err, derror.ErrEmptyReply):
		metrics.IncAssistantError(provider, "empty")
		return c.tr.T("err_empty_reply")
	default:
		metrics.IncAssistantError(provider, "transport")
		log.Warn().Err(err).Msg("assistant call failed")
		return c.tr.T("err_send", err.Error())
	}
}

func isTimeout(err error) bool {
	return err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, derror.ErrAssistantTimeout))
}

func (c *chatUC) count(text string) int {
	if c.tokens == nil {
		return 0
	}
	return c.tokens.Count(text)
}

// persist saves off the request path; a full or stopped pool saves inline.
func (c *chatUC) persist(sessionID string, msgs []model.Message) {
	task := func(ctx context.Context) error {
		c.history.Save(ctx, sessionID, msgs)
		return nil
	}
	if c.runner != nil {
		if err := c.runner.Submit(task); err == nil {
			metrics.IncPersistJob("queued")
			return
		}
	}
	metrics.IncPersistJob("inline")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = task(ctx)
}

func (c *chatUC) NewChat(st *SessionState) {
	st.Reset()
}

func (c *chatUC) LoadHistory(ctx context.Context, st *SessionState, sessionID string) bool {
	msgs := c.history.Load(ctx, sessionID)
	if len(msgs) == 0 {
		return false
	}
	st.Replace(sessionID, msgs)
	return true
}

func (c *chatUC) LastReply(st *SessionState) (string, bool) {
	m, ok := model.LastAssistant(st.Snapshot().Messages)
	return m.Content, ok
}

// SelfTest opens a throwaway conversation to check credentials and reachability.
func (c *chatUC) SelfTest(ctx context.Context) SelfTestResult {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	_, err := c.ai.CreateConversation(ctx)
	if err == nil {
		metrics.IncSelfTest("ok")
		return SelfTestResult{OK: true, Status: 201, Message: c.tr.T("selftest_ok")}
	}
	if code := derror.StatusCode(err); code != 0 {
		metrics.IncSelfTest("status")
		return SelfTestResult{Status: code, Message: c.tr.T("selftest_status", code)}
	}
	metrics.IncSelfTest("failed")
	c.log.Warn().Err(err).Msg("self-test failed")
	return SelfTestResult{Message: c.tr.T("selftest_failed")}
}

func (c *chatUC) Details(st *SessionState) ConnectionDetails {
	d := ConnectionDetails{
		Provider:     c.ai.Name(),
		Endpoint:     endpointHost(c.opts.BaseURL),
		Project:      logging.Redact(c.opts.ProjectPK, c.opts.Dev),
		TokenPresent: c.opts.TokenPresent,
		Status:       c.tr.T("standby"),
		Persistence:  c.history.Available(),
	}
	if id := st.ConversationID(); id != "" {
		d.Status = c.tr.T("active_chat")
		d.ConversationID = id
	}
	return d
}

func endpointHost(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}
