package chat

import (
	"context"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/Linexox/Banxious/internal/knowledge"
	chatmodel "github.com/Linexox/Banxious/internal/model/chat"
	"github.com/Linexox/Banxious/internal/prompt"
)

// Assembler 负责拼装发送给模型的消息序列：
// 系统提示词在前，其后是按时间排列的历史，用户当前消息在最后。
type Assembler struct {
	store        TurnStore
	knowledge    *knowledge.Base
	historyLimit int
}

// NewAssembler creates a context assembler reading history from store.
func NewAssembler(store TurnStore, kb *knowledge.Base, historyLimit int) *Assembler {
	return &Assembler{
		store:        store,
		knowledge:    kb,
		historyLimit: historyLimit,
	}
}

// Build returns the ordered message list for one turn. excludeTurnID
// drops the just-persisted current turn from the history window so it
// only appears once, at the end.
func (a *Assembler) Build(ctx context.Context, userID, content, mode string, excludeTurnID int64) ([]*schema.Message, error) {
	systemPrompt := prompt.ForMode(mode)
	if hits := a.knowledge.Search(content); hits != "" {
		systemPrompt += "\n\n相关心理学知识库：\n" + hits
	}

	history, err := a.store.RecentTurns(ctx, userID, a.historyLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))

	for _, turn := range history {
		if turn.ID == excludeTurnID {
			continue
		}
		switch turn.Role {
		case chatmodel.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chatmodel.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}

	messages = append(messages, schema.UserMessage(content))
	return messages, nil
}
