//go:build !integration

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	derror "maizey-chat/internal/error"
)

func newMaizeyServer(t *testing.T, h http.HandlerFunc) *MaizeyAdapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	a, err := NewMaizeyAdapter("tok", "proj", srv.URL, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestMaizeyAdapter_ConversationFlow(t *testing.T) {
	a := newMaizeyServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/maizey/api/projects/proj/conversation/":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"pk": 42}`))
		case "/maizey/api/projects/proj/conversation/42/messages/":
			var body struct {
				Query string `json:"query"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"response": "re: " + body.Query})
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	id, err := a.CreateConversation(ctx)
	if err != nil || id != "42" {
		t.Fatalf("create: id=%q err=%v", id, err)
	}
	reply, err := a.SendMessage(ctx, id, nil, "Campus dining hours")
	if err != nil || reply != "re: Campus dining hours" {
		t.Fatalf("send: %q %v", reply, err)
	}
}

func TestMaizeyAdapter_StringPK(t *testing.T) {
	a := newMaizeyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"pk": "9f1c"}`))
	})
	id, err := a.CreateConversation(context.Background())
	if err != nil || id != "9f1c" {
		t.Fatalf("got %q %v", id, err)
	}
}

func TestMaizeyAdapter_NonCreatedIsStatusError(t *testing.T) {
	a := newMaizeyServer(t, func(w http.ResponseWriter, r *http.Request) {
		// 200 is still a failure for this API
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`quota exceeded`))
	})
	_, err := a.SendMessage(context.Background(), "1", nil, "hi")
	var se *derror.StatusError
	if !errors.As(err, &se) || se.Code != 200 || se.Body != "quota exceeded" {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestMaizeyAdapter_MissingResponseField(t *testing.T) {
	a := newMaizeyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	})
	if _, err := a.SendMessage(context.Background(), "1", nil, "hi"); !errors.Is(err, derror.ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestMaizeyAdapter_Timeout(t *testing.T) {
	a := newMaizeyServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.CreateConversation(ctx); !errors.Is(err, derror.ErrAssistantTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestNewMaizeyAdapter_RequiresCredentials(t *testing.T) {
	if _, err := NewMaizeyAdapter("", "p", "", 0); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewMaizeyAdapter("t", "", "", 0); err == nil {
		t.Fatal("expected error for missing project")
	}
}
