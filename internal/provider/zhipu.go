package provider

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/Linexox/Banxious/internal/config"
)

const zhipuMaxTokens = 65536

// Zhipu 后端。thinking 模式通过请求体里的 thinking 开关实现。
type Zhipu struct {
	httpGateway
	model string
}

var _ Gateway = (*Zhipu)(nil)

// NewZhipu creates a gateway bound to the Zhipu (bigmodel.cn) API.
func NewZhipu(cfg config.LLMConfig) *Zhipu {
	return &Zhipu{
		httpGateway: httpGateway{
			name:    "zhipu",
			url:     cfg.ZhipuBaseURL,
			apiKey:  cfg.ZhipuAPIKey,
			timeout: cfg.RequestTimeout,
			hc:      newHTTPClient(),
		},
		model: cfg.ZhipuModel,
	}
}

type zhipuThinking struct {
	Type string `json:"type"`
}

type zhipuRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Stream      bool           `json:"stream"`
	Temperature *float64       `json:"temperature,omitempty"`
	Thinking    *zhipuThinking `json:"thinking,omitempty"`
}

func (z *Zhipu) payload(messages []*schema.Message, thinkingEnabled, stream bool) zhipuRequest {
	req := zhipuRequest{
		Model:     z.model,
		Messages:  toWireMessages(messages),
		MaxTokens: zhipuMaxTokens,
		Stream:    stream,
	}
	if thinkingEnabled {
		req.Thinking = &zhipuThinking{Type: "enabled"}
	} else {
		temperature := 1.0
		req.Temperature = &temperature
	}
	return req
}

func (z *Zhipu) Complete(ctx context.Context, messages []*schema.Message, thinkingEnabled bool) (*schema.Message, error) {
	return z.complete(ctx, z.payload(messages, thinkingEnabled, false))
}

func (z *Zhipu) Stream(ctx context.Context, messages []*schema.Message, thinkingEnabled bool) (*schema.StreamReader[*schema.Message], error) {
	return z.stream(ctx, z.payload(messages, thinkingEnabled, true))
}
