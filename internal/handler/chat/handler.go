package chat

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	chatservice "github.com/Linexox/Banxious/internal/service/chat"
	"github.com/Linexox/Banxious/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc *chatservice.Service
}

// New 创建聊天处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleComplete)
	r.Post("/chat/stream", h.handleStream)
}

type chatPayload struct {
	UserID          string `json:"user_id"`
	Content         string `json:"content"`
	Mode            string `json:"mode"`
	ThinkingEnabled bool   `json:"thinking_enabled"`
}

func decodeChatPayload(w http.ResponseWriter, r *http.Request) (chatservice.Request, bool) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return chatservice.Request{}, false
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id is required")
		return chatservice.Request{}, false
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return chatservice.Request{}, false
	}

	return chatservice.Request{
		UserID:          payload.UserID,
		Content:         payload.Content,
		Mode:            payload.Mode,
		ThinkingEnabled: payload.ThinkingEnabled,
	}, true
}

// handleStream 流式对话：响应是原始文本分片，连接关闭即结束。
// Mid-stream failures arrive in-band as an "[ERROR] ..." fragment.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatPayload(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	emit := func(fragment string) error {
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	// Failures were already relayed in-band; nothing more to send here.
	if err := h.chatSvc.StreamTurn(r.Context(), req, emit); err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("chat stream failed")
	}
}

// handleComplete 阻塞式对话，返回完整回复。
func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatPayload(w, r)
	if !ok {
		return
	}

	content, err := h.chatSvc.CompleteTurn(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("chat completion failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"content": content})
}
