package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pairing-buds/companion/internal/handler/chat"
	"github.com/pairing-buds/companion/internal/handler/ws"
	middlewarePkg "github.com/pairing-buds/companion/internal/middleware"
	"github.com/pairing-buds/companion/internal/service/speech"
	"github.com/pairing-buds/companion/internal/service/turn"
	"github.com/pairing-buds/companion/internal/session"
	"github.com/pairing-buds/companion/internal/store"
	"github.com/pairing-buds/companion/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(registry *session.Registry, orch *turn.Orchestrator, contexts store.ContextStore, transcriber speech.Transcriber) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(orch, contexts)
	wsHandler := ws.New(registry, orch, transcriber)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"sessions": registry.Len(),
			})
		})
	})

	return r
}
