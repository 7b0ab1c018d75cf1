// Package provider abstracts the LLM backends behind a capability-set
// interface. Each Gateway instance is bound to exactly one backend for
// its lifetime; adding a backend means adding a variant, not touching
// callers.
package provider

import (
	"context"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/Linexox/Banxious/internal/config"
)

// Gateway 是对大模型后端能力的统一抽象。
type Gateway interface {
	// Complete sends the ordered message list and returns the full
	// decoded response. thinkingEnabled requests the backend's
	// extended-reasoning behavior.
	Complete(ctx context.Context, messages []*schema.Message, thinkingEnabled bool) (*schema.Message, error)

	// Stream opens a streaming completion. The returned reader yields
	// incremental assistant fragments and terminates with io.EOF; a
	// transport failure mid-stream surfaces as a single error from
	// Recv after fragments already delivered.
	Stream(ctx context.Context, messages []*schema.Message, thinkingEnabled bool) (*schema.StreamReader[*schema.Message], error)
}

// New 根据配置创建绑定到单一后端的 Gateway。
func New(ctx context.Context, cfg config.LLMConfig) (Gateway, error) {
	switch cfg.Provider {
	case config.ProviderDeepSeek:
		return NewDeepSeek(cfg), nil
	case config.ProviderZhipu:
		return NewZhipu(cfg), nil
	case config.ProviderArk:
		return NewArk(ctx, cfg)
	default:
		return nil, errors.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Ordered role/content pairs on the wire (OpenAI-shaped contract).
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toWireMessages(messages []*schema.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// newHTTPClient returns the shared transport for the HTTP-speaking
// variants. No client-level timeout: streaming responses are long
// lived, so deadlines come from the caller's context.
func newHTTPClient() *http.Client {
	return &http.Client{}
}
