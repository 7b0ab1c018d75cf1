package provider

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/Linexox/Banxious/internal/config"
)

const deepSeekMaxTokens = 8000

// DeepSeek 后端。thinking 模式通过切换到 reasoner 模型实现。
type DeepSeek struct {
	httpGateway
	model         string
	reasonerModel string
}

var _ Gateway = (*DeepSeek)(nil)

// NewDeepSeek creates a gateway bound to the DeepSeek API.
func NewDeepSeek(cfg config.LLMConfig) *DeepSeek {
	return &DeepSeek{
		httpGateway: httpGateway{
			name:    "deepseek",
			url:     cfg.DeepSeekBaseURL,
			apiKey:  cfg.DeepSeekAPIKey,
			timeout: cfg.RequestTimeout,
			hc:      newHTTPClient(),
		},
		model:         cfg.DeepSeekModel,
		reasonerModel: cfg.DeepSeekReasonerModel,
	}
}

type deepSeekRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream"`
	// The reasoner model rejects sampling overrides, so temperature is
	// only set for the chat model.
	Temperature *float64 `json:"temperature,omitempty"`
}

func (d *DeepSeek) payload(messages []*schema.Message, thinkingEnabled, stream bool) deepSeekRequest {
	req := deepSeekRequest{
		Model:     d.model,
		Messages:  toWireMessages(messages),
		MaxTokens: deepSeekMaxTokens,
		Stream:    stream,
	}
	if thinkingEnabled {
		req.Model = d.reasonerModel
	} else {
		temperature := 1.0
		req.Temperature = &temperature
	}
	return req
}

func (d *DeepSeek) Complete(ctx context.Context, messages []*schema.Message, thinkingEnabled bool) (*schema.Message, error) {
	return d.complete(ctx, d.payload(messages, thinkingEnabled, false))
}

func (d *DeepSeek) Stream(ctx context.Context, messages []*schema.Message, thinkingEnabled bool) (*schema.StreamReader[*schema.Message], error) {
	return d.stream(ctx, d.payload(messages, thinkingEnabled, true))
}
