package web

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"maizey-chat/internal/application"
	"maizey-chat/internal/infra/api"
	"maizey-chat/internal/infra/i18n"
	"maizey-chat/internal/infra/logging"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// SendLimiter throttles sends per browser. The redis rate limiter satisfies it.
type SendLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	RequestTimeout time.Duration
	SendRateLimit  int // per minute; 0 disables
	Tracer         trace.Tracer
}

type Server struct {
	facade   *application.ChatFacade
	sessions *SessionManager
	states   *StateRegistry
	limiter  SendLimiter
	tr       *i18n.Translator
	page     *template.Template
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	facade *application.ChatFacade,
	sessions *SessionManager,
	states *StateRegistry,
	limiter SendLimiter,
	tr *i18n.Translator,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("web")
	}
	return &Server{
		facade:   facade,
		sessions: sessions,
		states:   states,
		limiter:  limiter,
		tr:       tr,
		page:     parsePage(tr),
		opts:     opts,
		log:      logger,
	}
}

// Router builds the full HTTP surface: the chat page, its JSON API, and
// the operational endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Identify)

		r.Get("/", s.handlePage)

		r.Route("/api", func(r chi.Router) {
			r.Get("/chat", s.handleChat)
			r.Post("/chat/messages", s.handleSend)
			r.Post("/chat/new", s.handleNewChat)
			r.Get("/chat/last-reply", s.handleLastReply)

			r.Get("/history", s.handleHistory)
			r.Delete("/history", s.handleClearAll)
			r.Post("/history/{id}/load", s.handleLoad)
			r.Delete("/history/{id}", s.handleDelete)

			r.Get("/selftest", s.handleSelfTest)
			r.Get("/status", s.handleStatus)
			r.Get("/examples", s.handleExamples)
		})
	})

	return api.Chain(r,
		api.TraceID(),
		api.Span(s.opts.Tracer),
		api.RequestLog(s.log),
		api.Recover(s.log),
		api.Timeout(s.opts.RequestTimeout),
	)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
