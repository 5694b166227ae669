package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/domain/ports/adapter"
	derror "maizey-chat/internal/error"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.AssistantAdapter = (*MaizeyAdapter)(nil)

// MaizeyAdapter talks to the U-M Maizey project API.
//
//	POST {base}/maizey/api/projects/{project}/conversation/            -> 201 {"pk": ...}
//	POST {base}/maizey/api/projects/{project}/conversation/{pk}/messages/ {"query": ...} -> 201 {"response": ...}
//
// Authorization: Bearer <ACCESS_TOKEN>. Conversations are stateful on the
// server, so history is not replayed.
type MaizeyAdapter struct {
	token   string
	base    string
	project string
	client  *http.Client
}

func NewMaizeyAdapter(token, projectPK, base string, timeout time.Duration) (*MaizeyAdapter, error) {
	if token == "" {
		return nil, errors.New("maizey access token empty")
	}
	if projectPK == "" {
		return nil, errors.New("maizey project pk empty")
	}
	if base == "" {
		base = "https://umgpt.umich.edu"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MaizeyAdapter{
		token:   token,
		base:    strings.TrimRight(base, "/"),
		project: projectPK,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (m *MaizeyAdapter) Name() string { return "maizey" }

func (m *MaizeyAdapter) conversationsURL() string {
	return fmt.Sprintf("%s/maizey/api/projects/%s/conversation/", m.base, m.project)
}

func (m *MaizeyAdapter) CreateConversation(ctx context.Context) (string, error) {
	var payload struct {
		PK json.RawMessage `json:"pk"`
	}
	if err := m.post(ctx, "create conversation", m.conversationsURL(), struct{}{}, &payload); err != nil {
		return "", err
	}
	id := pkString(payload.PK)
	if id == "" {
		return "", derror.ErrNoConversation
	}
	return id, nil
}

func (m *MaizeyAdapter) SendMessage(ctx context.Context, conversationID string, _ []model.Message, query string) (string, error) {
	if conversationID == "" {
		return "", derror.ErrNoConversation
	}
	url := fmt.Sprintf("%s%s/messages/", m.conversationsURL(), conversationID)
	body := struct {
		Query string `json:"query"`
	}{Query: query}
	var payload struct {
		Response *string `json:"response"`
	}
	if err := m.post(ctx, "send message", url, body, &payload); err != nil {
		return "", err
	}
	if payload.Response == nil {
		return "", derror.ErrEmptyReply
	}
	return *payload.Response, nil
}

// post sends body as JSON and decodes a 201 answer into out. Any other status
// comes back as a *derror.StatusError carrying the raw body.
func (m *MaizeyAdapter) post(ctx context.Context, op, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.token)

	resp, err := m.client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return fmt.Errorf("%s: %w", op, derror.ErrAssistantTimeout)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return &derror.StatusError{Op: op, Code: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

// pkString accepts both numeric and string primary keys.
func pkString(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}
