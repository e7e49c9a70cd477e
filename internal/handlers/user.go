package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/middleware"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

type createUserRequest struct {
	Username string `json:"username"`
}

type createUserResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.CreateUser(r.Context(), req.Username)
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		respondError(w, inputMessage(err), http.StatusBadRequest)
		return
	case errors.Is(err, errs.ErrAlreadyExists):
		respondError(w, "Username already taken", http.StatusConflict)
		return
	case err != nil:
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("User created")

	respondJSON(w, createUserResponse{User: user, Token: token}, http.StatusCreated)
}

// GetCurrentUser handles GET /api/user
func (h *UserHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	respondJSON(w, user, http.StatusOK)
}

// GetUserUploads handles GET /api/user/uploads
func (h *UserHandler) GetUserUploads(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	uploads, err := h.userService.Uploads(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to get uploads")
		respondError(w, "Failed to get uploads", http.StatusInternalServerError)
		return
	}
	respondJSON(w, uploads, http.StatusOK)
}

// currentUser writes the error response itself when it returns false
func (h *UserHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := h.userService.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if errors.Is(err, errs.ErrNotFound) {
		respondError(w, "User not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to get current user")
		respondError(w, "Failed to get user", http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}
