package card

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	cardservice "github.com/Linexox/Banxious/internal/service/card"
	"github.com/Linexox/Banxious/pkg/utils"
)

// Handler 卡片读取的HTTP处理器
type Handler struct {
	cardSvc *cardservice.Service
}

// New 创建卡片处理器
func New(cardSvc *cardservice.Service) *Handler {
	return &Handler{cardSvc: cardSvc}
}

// RegisterRoutes 注册卡片相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/card", h.handleGetCard)
}

// handleGetCard 返回用户的抗焦虑卡片：缓存命中直接返回，
// 缺失或损坏时同步生成。
func (h *Handler) handleGetCard(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.cardSvc.Get(r.Context(), payload.UserID)
	if err != nil {
		if errors.Is(err, cardservice.ErrNoHistory) {
			utils.RespondError(w, http.StatusNotFound, "no conversation history found")
			return
		}
		log.Error().Err(err).Str("user", payload.UserID).Msg("card retrieval failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}
