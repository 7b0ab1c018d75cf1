package chat

import "time"

// Role values persisted with each turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn persists a single conversation message for one user.
// Content is immutable once written; ordering is by CreatedAt with ID
// breaking ties.
type Turn struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
