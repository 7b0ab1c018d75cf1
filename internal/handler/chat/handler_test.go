package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Linexox/Banxious/internal/knowledge"
	chatmodel "github.com/Linexox/Banxious/internal/model/chat"
	chatservice "github.com/Linexox/Banxious/internal/service/chat"
)

type memStore struct {
	turns  []chatmodel.Turn
	nextID int64
}

func (m *memStore) SaveTurn(_ context.Context, userID, role, content string) (chatmodel.Turn, error) {
	m.nextID++
	turn := chatmodel.Turn{ID: m.nextID, UserID: userID, Role: role, Content: content, CreatedAt: time.Now().UTC()}
	m.turns = append(m.turns, turn)
	return turn, nil
}

func (m *memStore) RecentTurns(_ context.Context, userID string, limit int) ([]chatmodel.Turn, error) {
	var out []chatmodel.Turn
	for _, t := range m.turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type scriptedGateway struct {
	chunks  []string
	openErr error
	full    string
}

func (g *scriptedGateway) Complete(context.Context, []*schema.Message, bool) (*schema.Message, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	return schema.AssistantMessage(g.full, nil), nil
}

func (g *scriptedGateway) Stream(context.Context, []*schema.Message, bool) (*schema.StreamReader[*schema.Message], error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(g.chunks))
	go func() {
		defer sw.Close()
		for _, c := range g.chunks {
			sw.Send(schema.AssistantMessage(c, nil), nil)
		}
	}()
	return sr, nil
}

type noopScheduler struct{}

func (noopScheduler) Enqueue(string) {}

func setupRouter(gw *scriptedGateway) (*chi.Mux, *memStore) {
	st := &memStore{}
	assembler := chatservice.NewAssembler(st, knowledge.New(knowledge.Seed()), 20)
	svc := chatservice.NewService(st, gw, assembler, noopScheduler{})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, st
}

func postJSON(t *testing.T, r http.Handler, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChatStreamRelaysFragmentsAsPlainText(t *testing.T) {
	r, st := setupRouter(&scriptedGateway{chunks: []string{"根据", "你的", "描述..."}})

	resp := postJSON(t, r, "/chat/stream", map[string]any{
		"user_id": "u1",
		"content": "我很焦虑",
	})

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
	require.Equal(t, "根据你的描述...", resp.Body.String())

	require.Len(t, st.turns, 2)
	require.Equal(t, "根据你的描述...", st.turns[1].Content)
}

func TestChatStreamMissingUserID(t *testing.T) {
	r, _ := setupRouter(&scriptedGateway{})

	resp := postJSON(t, r, "/chat/stream", map[string]any{"content": "hi"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatStreamMissingContent(t *testing.T) {
	r, _ := setupRouter(&scriptedGateway{})

	resp := postJSON(t, r, "/chat/stream", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestChatStreamFailureIsInBand(t *testing.T) {
	r, st := setupRouter(&scriptedGateway{openErr: errors.New("upstream down")})

	resp := postJSON(t, r, "/chat/stream", map[string]any{
		"user_id": "u1",
		"content": "你好",
	})

	// Failure arrives as literal text the caller pattern-matches.
	require.Contains(t, resp.Body.String(), chatservice.ErrorPrefix)
	require.Len(t, st.turns, 1)
}

func TestChatCompleteReturnsJSON(t *testing.T) {
	r, st := setupRouter(&scriptedGateway{full: "完整回复"})

	resp := postJSON(t, r, "/chat", map[string]any{
		"user_id": "u1",
		"content": "你好",
	})

	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "完整回复", body["content"])
	require.Len(t, st.turns, 2)
}

func TestChatCompleteGatewayError(t *testing.T) {
	r, _ := setupRouter(&scriptedGateway{openErr: errors.New("upstream down")})

	resp := postJSON(t, r, "/chat", map[string]any{
		"user_id": "u1",
		"content": "你好",
	})
	require.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestChatInvalidBody(t *testing.T) {
	r, _ := setupRouter(&scriptedGateway{})

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte("{not json")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
