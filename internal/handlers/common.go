package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"plant-photo-backend/internal/errs"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string `json:"message"`
}

// UploadErrorResponse is the error shape of the upload route
type UploadErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, payload interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Message: message}, statusCode)
}

// inputMessage returns the user-facing part of an errs.ErrInvalidInput chain
func inputMessage(err error) string {
	if !errors.Is(err, errs.ErrInvalidInput) {
		return "Invalid request"
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, errs.ErrInvalidInput.Error()+": "); i >= 0 {
		msg = msg[i+len(errs.ErrInvalidInput.Error())+2:]
	}
	return msg
}
