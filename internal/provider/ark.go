package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Linexox/Banxious/internal/config"
)

// Ark 后端，委托给 eino-ext 的 Ark ChatModel。
// The Ark SDK has no request-level thinking toggle; reasoning behavior
// is a property of the configured model, so thinkingEnabled is ignored.
type Ark struct {
	cm model.ChatModel
}

var _ Gateway = (*Ark)(nil)

// NewArk creates a gateway bound to a Volcengine Ark model.
func NewArk(ctx context.Context, cfg config.LLMConfig) (*Ark, error) {
	cm, err := cfg.NewArkChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return &Ark{cm: cm}, nil
}

func (a *Ark) Complete(ctx context.Context, messages []*schema.Message, _ bool) (*schema.Message, error) {
	return a.cm.Generate(ctx, messages)
}

func (a *Ark) Stream(ctx context.Context, messages []*schema.Message, _ bool) (*schema.StreamReader[*schema.Message], error) {
	return a.cm.Stream(ctx, messages)
}
