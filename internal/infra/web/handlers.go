package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/infra/redis"
	"maizey-chat/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type sendRequest struct {
	Query string `json:"query"`
}

type historyResponse struct {
	Items       []model.ChatSummary `json:"items"`
	Persistence bool                `json:"persistence"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) state(r *http.Request) *usecase.SessionState {
	return s.states.Get(BrowserID(r.Context()))
}

// isForm reports whether the request came from the no-script page form, in
// which case the handler redirects back to the page instead of answering JSON.
func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.View(s.state(r)))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	browserID := BrowserID(ctx)
	log := logging.With(logging.WithSessID(ctx, browserID), s.log)

	var req sendRequest
	if isForm(r) {
		req.Query = r.FormValue("query")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if s.limiter != nil && s.opts.SendRateLimit > 0 {
		ok, err := s.limiter.Allow(ctx, redis.SendKey(browserID), s.opts.SendRateLimit, time.Minute)
		if err != nil {
			// limiter outage does not block chatting
			log.Warn().Err(err).Msg("send rate limiter unavailable")
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "too many messages, slow down")
			return
		}
	}

	msg, err := s.facade.Send(ctx, s.state(r), req.Query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			if isForm(r) {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			writeError(w, http.StatusBadRequest, "query must not be empty")
			return
		}
		log.Error().Err(err).Msg("send failed")
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	view := s.facade.NewChat(s.state(r))
	if isForm(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleLastReply returns the raw text of the latest reply for the copy action.
func (s *Server) handleLastReply(w http.ResponseWriter, r *http.Request) {
	text, ok := s.facade.LastReply(s.state(r))
	if !ok {
		writeError(w, http.StatusNotFound, "no reply yet")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	items := s.facade.Recent(r.Context(), limit)
	if items == nil {
		items = []model.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items, Persistence: s.facade.History.Available()})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := s.facade.Load(r.Context(), s.state(r), id)
	if !ok {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": s.facade.Delete(r.Context(), id)})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": s.facade.ClearAll(r.Context())})
}

func (s *Server) handleSelfTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.SelfTest(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Status(s.state(r)))
}

func (s *Server) handleExamples(w http.ResponseWriter, _ *http.Request) {
	examples := s.facade.Examples
	if examples == nil {
		examples = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"examples": examples})
}
