package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// Base 提供只读的心理学知识检索，按关键词匹配用户输入。
type Base struct {
	entries map[string]string
	keys    []string
}

// New returns a Base preloaded with the supplied entries.
func New(entries map[string]string) *Base {
	b := &Base{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		b.entries[k] = v
		b.keys = append(b.keys, k)
	}
	// Deterministic hit ordering when several keys match.
	sort.Strings(b.keys)
	return b
}

// Seed provides the built-in knowledge entries shipped with the product.
func Seed() map[string]string {
	return map[string]string{
		"焦虑": "焦虑是一种常见的情绪反应，通常是对未来不确定性的担忧。适度的焦虑可以提高警觉性，但过度的焦虑会影响生活。",
		"抑郁": "抑郁不仅仅是心情不好，而是一种持续的情绪低落状态，可能伴随兴趣丧失、睡眠障碍等。",
		"压力": "压力是身体对挑战或需求的反应。学会压力管理技巧，如深呼吸、正念冥想，有助于缓解压力。",
		"失眠": "失眠可能由压力、焦虑或不良睡眠习惯引起。建立规律的作息时间非常重要。",
	}
}

// Search 对用户输入做关键词包含匹配，返回拼接后的知识文本。
// Returns "" when nothing matches.
func (b *Base) Search(query string) string {
	var hits []string
	for _, key := range b.keys {
		if strings.Contains(query, key) {
			hits = append(hits, fmt.Sprintf("【%s知识】: %s", key, b.entries[key]))
		}
	}
	return strings.Join(hits, "\n")
}
