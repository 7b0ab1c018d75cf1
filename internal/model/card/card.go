package card

import "time"

// CacheEntry 保存每个用户最近一次成功生成的卡片。
// CardJSON is always syntactically valid JSON: entries that fail
// validation are never written.
type CacheEntry struct {
	UserID    string    `json:"userId"`
	CardJSON  string    `json:"cardJson"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Card is the parsed summary artifact returned to callers. The model is
// free to emit additional fields, so it stays a loose map.
type Card = map[string]any
