package config

import (
	"context"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
)

// Provider identifies which LLM backend a gateway instance is bound to.
type Provider string

const (
	ProviderDeepSeek Provider = "deepseek"
	ProviderZhipu    Provider = "zhipu"
	ProviderArk      Provider = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	LLM    LLMConfig
	Chat   ChatConfig
	Card   CardConfig

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH" envDefault:"data/banxious.db"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// Addr returns the listen address. Values already containing a colon
// are passed through so ":8080" and "127.0.0.1:8080" both work.
func (c ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// LLMConfig 描述大模型后端的配置，一个实例只绑定一个后端。
type LLMConfig struct {
	Provider Provider `env:"LLM_PROVIDER" envDefault:"deepseek"`

	DeepSeekAPIKey        string `env:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL       string `env:"DEEPSEEK_API_URL" envDefault:"https://api.deepseek.com/chat/completions"`
	DeepSeekModel         string `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`
	DeepSeekReasonerModel string `env:"DEEPSEEK_REASONER_MODEL" envDefault:"deepseek-reasoner"`

	ZhipuAPIKey  string `env:"ZHIPU_API_KEY"`
	ZhipuBaseURL string `env:"ZHIPU_API_URL" envDefault:"https://open.bigmodel.cn/api/paas/v4/chat/completions"`
	ZhipuModel   string `env:"ZHIPU_MODEL" envDefault:"glm-4.7"`

	ArkAPIKey  string `env:"ARK_API_KEY"`
	ArkModel   string `env:"ARK_MODEL"`
	ArkBaseURL string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion  string `env:"ARK_REGION" envDefault:"cn-beijing"`

	RequestTimeout time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
}

// ChatConfig 描述对话上下文装配的配置。
type ChatConfig struct {
	HistoryLimit int `env:"CHAT_HISTORY_LIMIT" envDefault:"20"`
}

// CardConfig 描述卡片生成任务的配置。
type CardConfig struct {
	HistoryLimit int `env:"CARD_HISTORY_LIMIT" envDefault:"50"`
	QueueSize    int `env:"CARD_QUEUE_SIZE" envDefault:"64"`
}

// Load 从环境变量加载并校验配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.LLM.validate(); err != nil {
		return nil, err
	}
	if cfg.Chat.HistoryLimit < 1 {
		return nil, errors.Errorf("invalid CHAT_HISTORY_LIMIT %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Card.HistoryLimit < 1 {
		return nil, errors.Errorf("invalid CARD_HISTORY_LIMIT %d", cfg.Card.HistoryLimit)
	}
	return cfg, nil
}

func (c LLMConfig) validate() error {
	switch c.Provider {
	case ProviderDeepSeek:
		if c.DeepSeekAPIKey == "" {
			return errors.New("DEEPSEEK_API_KEY is required for provider deepseek")
		}
	case ProviderZhipu:
		if c.ZhipuAPIKey == "" {
			return errors.New("ZHIPU_API_KEY is required for provider zhipu")
		}
	case ProviderArk:
		if c.ArkAPIKey == "" || c.ArkModel == "" {
			return errors.New("ARK_API_KEY and ARK_MODEL are required for provider ark")
		}
	default:
		return errors.Errorf("unsupported LLM provider: %s", c.Provider)
	}
	return nil
}

// NewArkChatModel 使用配置创建一个 Ark 模型实例。
func (c LLMConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	cm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: c.ArkBaseURL,
		Region:  c.ArkRegion,
		APIKey:  c.ArkAPIKey,
		Model:   c.ArkModel,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ark chat model")
	}
	return cm, nil
}
