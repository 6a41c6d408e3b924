package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pairing-buds/companion/internal/service/turn"
	"github.com/pairing-buds/companion/internal/store"
)

// Handler serves the REST chat surface for clients that do not hold a socket.
type Handler struct {
	orch     *turn.Orchestrator
	contexts store.ContextStore
}

// New creates the chat handler.
func New(orch *turn.Orchestrator, contexts store.ContextStore) *Handler {
	return &Handler{orch: orch, contexts: contexts}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/message", h.handleMessage)
	r.Get("/chat/history/{userID}", h.handleHistory)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID == "" || payload.Message == "" {
		respondError(w, http.StatusBadRequest, "userId and message are required")
		return
	}

	reply, err := h.orch.HandleTurn(r.Context(), turn.Request{
		UserID:  payload.UserID,
		Message: payload.Message,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, turn.ErrIdentity) {
			status = http.StatusNotFound
		}
		respondError(w, status, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"from":        "ai",
		"message":     reply.Text,
		"rateLimited": reply.RateLimited,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "userID is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	history, err := h.contexts.RecentHistory(r.Context(), userID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"userId":   userID,
		"messages": history,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
