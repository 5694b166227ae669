package application

import (
	"context"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs, so tests can pass
// light-weight mocks.

type ChatUseCaseIface interface {
	Send(ctx context.Context, st *usecase.SessionState, query string) (model.Message, error)
	NewChat(st *usecase.SessionState)
	LoadHistory(ctx context.Context, st *usecase.SessionState, sessionID string) bool
	LastReply(st *usecase.SessionState) (string, bool)
	SelfTest(ctx context.Context) usecase.SelfTestResult
	Details(st *usecase.SessionState) usecase.ConnectionDetails
}

type HistoryUseCaseIface interface {
	ListRecent(ctx context.Context, limit int) []model.ChatSummary
	Delete(ctx context.Context, sessionID string) bool
	ClearAll(ctx context.Context) bool
	Available() bool
}
