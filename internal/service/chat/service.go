// Package chat drives a conversational turn end to end: persist the
// incoming message, assemble model context, relay the streamed reply,
// persist the completed turn and schedule card regeneration.
package chat

import (
	"context"
	"io"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	chatmodel "github.com/Linexox/Banxious/internal/model/chat"
	"github.com/Linexox/Banxious/internal/provider"
)

// ErrorPrefix marks the in-band failure fragment relayed to callers.
const ErrorPrefix = "[ERROR] "

// TurnStore is the slice of the message store the service needs.
type TurnStore interface {
	SaveTurn(ctx context.Context, userID, role, content string) (chatmodel.Turn, error)
	RecentTurns(ctx context.Context, userID string, limit int) ([]chatmodel.Turn, error)
}

// CardScheduler schedules background card regeneration for a user.
// Enqueue must never block the calling request.
type CardScheduler interface {
	Enqueue(userID string)
}

// Request 描述一次对话请求。
type Request struct {
	UserID          string
	Content         string
	Mode            string
	ThinkingEnabled bool
}

// Service 负责单次对话回合的编排。
type Service struct {
	store     TurnStore
	gateway   provider.Gateway
	assembler *Assembler
	cards     CardScheduler
}

// NewService wires the orchestrator with its collaborators.
func NewService(store TurnStore, gateway provider.Gateway, assembler *Assembler, cards CardScheduler) *Service {
	return &Service{
		store:     store,
		gateway:   gateway,
		assembler: assembler,
		cards:     cards,
	}
}

// StreamTurn runs one chat turn, relaying each fragment through emit in
// production order. Failures are relayed in-band with ErrorPrefix and
// abort persistence of the turn; an emit error means the caller went
// away, in which case accumulated text is discarded.
func (s *Service) StreamTurn(ctx context.Context, req Request, emit func(string) error) error {
	turnTrace := uuid.NewString()
	logger := log.With().
		Str("component", "chat").
		Str("turn", turnTrace).
		Str("user", req.UserID).
		Logger()

	userTurn, err := s.store.SaveTurn(ctx, req.UserID, chatmodel.RoleUser, req.Content)
	if err != nil {
		err = errors.Wrap(err, "save user turn")
		_ = emit(ErrorPrefix + err.Error())
		return err
	}

	messages, err := s.assembler.Build(ctx, req.UserID, req.Content, req.Mode, userTurn.ID)
	if err != nil {
		err = errors.Wrap(err, "assemble context")
		_ = emit(ErrorPrefix + err.Error())
		return err
	}

	stream, err := s.gateway.Stream(ctx, messages, req.ThinkingEnabled)
	if err != nil {
		err = errors.Wrap(err, "open stream")
		_ = emit(ErrorPrefix + err.Error())
		return err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			logger.Error().Err(recvErr).Msg("stream failed mid-flight")
			_ = emit(ErrorPrefix + recvErr.Error())
			return recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		if err := emit(chunk.Content); err != nil {
			// Caller disconnected; discard what was accumulated.
			logger.Warn().Err(err).Msg("caller went away mid-stream, discarding partial turn")
			return err
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		logger.Info().Msg("stream ended with no content, nothing persisted")
		return nil
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		err = errors.Wrap(err, "concat stream chunks")
		_ = emit(ErrorPrefix + err.Error())
		return err
	}

	if _, err := s.store.SaveTurn(ctx, req.UserID, chatmodel.RoleAssistant, full.Content); err != nil {
		err = errors.Wrap(err, "save assistant turn")
		_ = emit(ErrorPrefix + err.Error())
		return err
	}

	logger.Info().Int("fragments", len(chunks)).Int("length", len(full.Content)).Msg("turn completed")
	s.cards.Enqueue(req.UserID)
	return nil
}

// CompleteTurn is the blocking variant: one full response, persisted,
// with card regeneration scheduled on success.
func (s *Service) CompleteTurn(ctx context.Context, req Request) (string, error) {
	userTurn, err := s.store.SaveTurn(ctx, req.UserID, chatmodel.RoleUser, req.Content)
	if err != nil {
		return "", errors.Wrap(err, "save user turn")
	}

	messages, err := s.assembler.Build(ctx, req.UserID, req.Content, req.Mode, userTurn.ID)
	if err != nil {
		return "", errors.Wrap(err, "assemble context")
	}

	response, err := s.gateway.Complete(ctx, messages, req.ThinkingEnabled)
	if err != nil {
		return "", err
	}
	if response == nil || response.Content == "" {
		return "", errors.New("empty response from model")
	}

	if _, err := s.store.SaveTurn(ctx, req.UserID, chatmodel.RoleAssistant, response.Content); err != nil {
		return "", errors.Wrap(err, "save assistant turn")
	}

	s.cards.Enqueue(req.UserID)
	return response.Content, nil
}
