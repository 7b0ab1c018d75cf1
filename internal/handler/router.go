package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	cardHandler "github.com/Linexox/Banxious/internal/handler/card"
	chatHandler "github.com/Linexox/Banxious/internal/handler/chat"
	middlewarePkg "github.com/Linexox/Banxious/internal/middleware"
	cardService "github.com/Linexox/Banxious/internal/service/card"
	chatService "github.com/Linexox/Banxious/internal/service/chat"
	"github.com/Linexox/Banxious/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, cardSvc *cardService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(chatSvc).RegisterRoutes(api)
		cardHandler.New(cardSvc).RegisterRoutes(api)
		api.Post("/log", handleFrontendLog)
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Banxious API"})
	})

	return r
}

// handleFrontendLog 把前端上报的日志转存到服务端日志。
func handleFrontendLog(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Context map[string]any `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event := log.Info()
	if payload.Level == "error" || payload.Level == "warn" {
		event = log.Warn()
	}
	event.Str("component", "frontend").
		Str("level", payload.Level).
		Interface("context", payload.Context).
		Msg(payload.Message)

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
