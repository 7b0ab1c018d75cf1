// Package card computes and caches the per-user summary card derived
// from recent conversation history. The cache is strictly derived
// state: a failed regeneration never clobbers a previously good entry.
package card

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	cardmodel "github.com/Linexox/Banxious/internal/model/card"
	chatmodel "github.com/Linexox/Banxious/internal/model/chat"
	"github.com/Linexox/Banxious/internal/prompt"
	"github.com/Linexox/Banxious/internal/provider"
	"github.com/Linexox/Banxious/internal/store"
)

var (
	// ErrNoHistory 表示该用户还没有可总结的对话。
	ErrNoHistory = errors.New("no conversation history to summarize")
	// ErrEmptyResponse 表示模型返回了空内容。
	ErrEmptyResponse = errors.New("empty response from model")
)

// ParseError reports model output that did not parse as a card.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("card output is not valid JSON: %s", truncate(e.Raw, 200))
}

// TurnStore is the history-reading slice of the message store.
type TurnStore interface {
	RecentTurns(ctx context.Context, userID string, limit int) ([]chatmodel.Turn, error)
}

// CacheStore persists one card per user with upsert semantics.
type CacheStore interface {
	UpsertCardCache(ctx context.Context, userID, cardJSON string) error
	GetCardCache(ctx context.Context, userID string) (cardmodel.CacheEntry, error)
}

// Service 负责卡片的生成、校验、缓存与读取。
type Service struct {
	turns        TurnStore
	cache        CacheStore
	gateway      provider.Gateway
	historyLimit int
}

// NewService wires the card pipeline.
func NewService(turns TurnStore, cache CacheStore, gateway provider.Gateway, historyLimit int) *Service {
	return &Service{
		turns:        turns,
		cache:        cache,
		gateway:      gateway,
		historyLimit: historyLimit,
	}
}

// Regenerate summarizes recent history into a fresh card, caches it and
// returns the parsed value. On any failure the existing cache entry is
// left untouched.
func (s *Service) Regenerate(ctx context.Context, userID string) (cardmodel.Card, error) {
	history, err := s.turns.RecentTurns(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	if len(history) == 0 {
		return nil, ErrNoHistory
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, turn.Role+": "+prompt.CleanSuggestions(turn.Content))
	}

	messages := []*schema.Message{
		schema.UserMessage(prompt.RenderCardPrompt(strings.Join(lines, "\n"))),
	}

	// Thinking disabled: strict JSON output is what matters here.
	response, err := s.gateway.Complete(ctx, messages, false)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	clean := prompt.StripFences(content)
	var parsed cardmodel.Card
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, &ParseError{Raw: content}
	}

	if err := s.cache.UpsertCardCache(ctx, userID, clean); err != nil {
		return nil, errors.Wrap(err, "cache card")
	}
	return parsed, nil
}

// Get 读取用户卡片：命中且可解析则直接返回；缓存缺失或损坏时
// 同步重新生成。Failures propagate rather than returning stale or
// partial data.
func (s *Service) Get(ctx context.Context, userID string) (cardmodel.Card, error) {
	entry, err := s.cache.GetCardCache(ctx, userID)
	switch {
	case errors.Is(err, store.ErrCacheMiss):
		return s.Regenerate(ctx, userID)
	case err != nil:
		return nil, err
	}

	var parsed cardmodel.Card
	if err := json.Unmarshal([]byte(entry.CardJSON), &parsed); err == nil {
		return parsed, nil
	}

	log.Warn().
		Str("component", "card").
		Str("user", userID).
		Msg("cached card is corrupt, regenerating")
	return s.Regenerate(ctx, userID)
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
