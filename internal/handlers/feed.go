package handlers

import (
	"net/http"

	"plant-photo-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// FeedHandler serves the public leaderboard, discoveries and impact stats
type FeedHandler struct {
	userService  *services.UserService
	statsService *services.StatsService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(userService *services.UserService, statsService *services.StatsService) *FeedHandler {
	return &FeedHandler{userService: userService, statsService: statsService}
}

// Leaderboard handles GET /api/leaderboard
func (h *FeedHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.Leaderboard(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get leaderboard")
		respondError(w, "Failed to get leaderboard", http.StatusInternalServerError)
		return
	}
	respondJSON(w, users, http.StatusOK)
}

// Discoveries handles GET /api/discoveries
func (h *FeedHandler) Discoveries(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.userService.Discoveries(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get discoveries")
		respondError(w, "Failed to get discoveries", http.StatusInternalServerError)
		return
	}
	respondJSON(w, uploads, http.StatusOK)
}

// Stats handles GET /api/stats
func (h *FeedHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Current(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get stats")
		respondError(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
