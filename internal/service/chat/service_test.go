package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Linexox/Banxious/internal/knowledge"
	chatmodel "github.com/Linexox/Banxious/internal/model/chat"
)

type fakeStore struct {
	mu     sync.Mutex
	turns  []chatmodel.Turn
	nextID int64
}

func (f *fakeStore) SaveTurn(_ context.Context, userID, role, content string) (chatmodel.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	turn := chatmodel.Turn{
		ID:        f.nextID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	f.turns = append(f.turns, turn)
	return turn, nil
}

func (f *fakeStore) RecentTurns(_ context.Context, userID string, limit int) ([]chatmodel.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chatmodel.Turn
	for _, t := range f.turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeGateway struct {
	chunks      []string
	streamErr   error
	openErr     error
	completeMsg string
	completeErr error

	lastMessages []*schema.Message
	lastThinking bool
}

func (g *fakeGateway) Complete(_ context.Context, messages []*schema.Message, thinking bool) (*schema.Message, error) {
	g.lastMessages = messages
	g.lastThinking = thinking
	if g.completeErr != nil {
		return nil, g.completeErr
	}
	return schema.AssistantMessage(g.completeMsg, nil), nil
}

func (g *fakeGateway) Stream(_ context.Context, messages []*schema.Message, thinking bool) (*schema.StreamReader[*schema.Message], error) {
	g.lastMessages = messages
	g.lastThinking = thinking
	if g.openErr != nil {
		return nil, g.openErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(g.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, c := range g.chunks {
			if closed := sw.Send(schema.AssistantMessage(c, nil), nil); closed {
				return
			}
		}
		if g.streamErr != nil {
			sw.Send(nil, g.streamErr)
		}
	}()
	return sr, nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	users []string
}

func (s *fakeScheduler) Enqueue(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
}

func (s *fakeScheduler) enqueued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}

func newTestService(gw *fakeGateway) (*Service, *fakeStore, *fakeScheduler) {
	st := &fakeStore{}
	sched := &fakeScheduler{}
	assembler := NewAssembler(st, knowledge.New(knowledge.Seed()), 20)
	return NewService(st, gw, assembler, sched), st, sched
}

func collectEmitter(fragments *[]string) func(string) error {
	return func(fragment string) error {
		*fragments = append(*fragments, fragment)
		return nil
	}
}

func TestStreamTurnRelaysFragmentsInOrder(t *testing.T) {
	gw := &fakeGateway{chunks: []string{"根据", "你的", "描述..."}}
	svc, st, sched := newTestService(gw)

	var fragments []string
	err := svc.StreamTurn(context.Background(), Request{
		UserID:  "u1",
		Content: "I feel anxious，最近很焦虑",
	}, collectEmitter(&fragments))
	require.NoError(t, err)

	// Fragments reach the caller in production order.
	require.Equal(t, []string{"根据", "你的", "描述..."}, fragments)

	// One user turn and one assistant turn with the accumulated text.
	require.Len(t, st.turns, 2)
	require.Equal(t, chatmodel.RoleUser, st.turns[0].Role)
	require.Equal(t, chatmodel.RoleAssistant, st.turns[1].Role)
	require.Equal(t, "根据你的描述...", st.turns[1].Content)

	// Knowledge hit on 焦虑 lands in the system prompt.
	require.Contains(t, gw.lastMessages[0].Content, "【焦虑知识】")

	require.Equal(t, []string{"u1"}, sched.enqueued())
}

func TestStreamTurnMidStreamErrorRelaysSentinel(t *testing.T) {
	gw := &fakeGateway{chunks: []string{"部分"}, streamErr: errors.New("connection reset")}
	svc, st, sched := newTestService(gw)

	var fragments []string
	err := svc.StreamTurn(context.Background(), Request{UserID: "u1", Content: "你好"}, collectEmitter(&fragments))
	require.Error(t, err)

	// The already-relayed fragment stays delivered, then the sentinel.
	require.Len(t, fragments, 2)
	require.Equal(t, "部分", fragments[0])
	require.True(t, strings.HasPrefix(fragments[1], ErrorPrefix))

	// No partial assistant turn, no card regeneration.
	require.Len(t, st.turns, 1)
	require.Equal(t, chatmodel.RoleUser, st.turns[0].Role)
	require.Empty(t, sched.enqueued())
}

func TestStreamTurnZeroFragments(t *testing.T) {
	gw := &fakeGateway{}
	svc, st, sched := newTestService(gw)

	var fragments []string
	err := svc.StreamTurn(context.Background(), Request{UserID: "u1", Content: "你好"}, collectEmitter(&fragments))
	require.NoError(t, err)

	require.Empty(t, fragments)
	require.Len(t, st.turns, 1)
	require.Empty(t, sched.enqueued())
}

func TestStreamTurnCallerDisconnectDiscardsPartial(t *testing.T) {
	gw := &fakeGateway{chunks: []string{"一", "二", "三"}}
	svc, st, sched := newTestService(gw)

	calls := 0
	emit := func(string) error {
		calls++
		if calls == 2 {
			return errors.New("client gone")
		}
		return nil
	}

	err := svc.StreamTurn(context.Background(), Request{UserID: "u1", Content: "你好"}, emit)
	require.Error(t, err)
	require.Len(t, st.turns, 1)
	require.Empty(t, sched.enqueued())
}

func TestStreamTurnOpenErrorEmitsSentinel(t *testing.T) {
	gw := &fakeGateway{openErr: errors.New("dial tcp: refused")}
	svc, st, sched := newTestService(gw)

	var fragments []string
	err := svc.StreamTurn(context.Background(), Request{UserID: "u1", Content: "你好"}, collectEmitter(&fragments))
	require.Error(t, err)
	require.Len(t, fragments, 1)
	require.True(t, strings.HasPrefix(fragments[0], ErrorPrefix))
	require.Len(t, st.turns, 1)
	require.Empty(t, sched.enqueued())
}

func TestStreamTurnPassesThinkingFlag(t *testing.T) {
	gw := &fakeGateway{chunks: []string{"嗯"}}
	svc, _, _ := newTestService(gw)

	var fragments []string
	err := svc.StreamTurn(context.Background(), Request{
		UserID:          "u1",
		Content:         "你好",
		ThinkingEnabled: true,
	}, collectEmitter(&fragments))
	require.NoError(t, err)
	require.True(t, gw.lastThinking)
}

func TestCompleteTurnPersistsBothSides(t *testing.T) {
	gw := &fakeGateway{completeMsg: "好的，我在听。"}
	svc, st, sched := newTestService(gw)

	content, err := svc.CompleteTurn(context.Background(), Request{UserID: "u1", Content: "你好"})
	require.NoError(t, err)
	require.Equal(t, "好的，我在听。", content)
	require.Len(t, st.turns, 2)
	require.Equal(t, []string{"u1"}, sched.enqueued())
}

func TestCompleteTurnEmptyResponse(t *testing.T) {
	gw := &fakeGateway{completeMsg: ""}
	svc, st, sched := newTestService(gw)

	_, err := svc.CompleteTurn(context.Background(), Request{UserID: "u1", Content: "你好"})
	require.Error(t, err)
	require.Len(t, st.turns, 1)
	require.Empty(t, sched.enqueued())
}
