package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/middleware"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const (
	msgUploadFailed = "Upload failed. Please try again."
	// room for multipart boundaries and the location field
	multipartOverhead = 1 << 20
)

// UploadHandler handles plant photo submissions
type UploadHandler struct {
	uploadService *services.UploadService
	userService   *services.UserService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService *services.UploadService, userService *services.UserService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, userService: userService}
}

type locationField struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.userService.CurrentUser(ctx, middleware.GetUserID(ctx))
	if errors.Is(err, errs.ErrNotFound) {
		respondError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve current user")
		uploadError(w, msgUploadFailed, http.StatusInternalServerError)
		return
	}

	maxSize := h.uploadService.MaxSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadError(w, "File too large", http.StatusBadRequest)
			return
		}
		uploadError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		uploadError(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	// one byte past the limit is enough for the service to reject it
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to read upload")
		uploadError(w, msgUploadFailed, http.StatusInternalServerError)
		return
	}

	location, err := parseLocation(r.FormValue("location"))
	if err != nil {
		uploadError(w, "Invalid location", http.StatusBadRequest)
		return
	}

	result, err := h.uploadService.Upload(ctx, services.UploadRequest{
		UserID:      user.ID,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Location:    location,
	})
	if errors.Is(err, errs.ErrInvalidInput) {
		uploadError(w, inputMessage(err), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", user.ID).
			Str("filename", header.Filename).
			Msg("Upload failed")
		uploadError(w, msgUploadFailed, http.StatusInternalServerError)
		return
	}

	respondJSON(w, result, http.StatusOK)
}

// parseLocation decodes the optional location form field. Both coordinates are required when present.
func parseLocation(raw string) (*models.Location, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var f locationField
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, err
	}
	if f.Lat == nil || f.Lng == nil {
		return nil, errors.New("lat and lng are required")
	}
	loc := &models.Location{Lat: *f.Lat, Lng: *f.Lng}
	if !loc.Valid() {
		return nil, errors.New("coordinates out of range")
	}
	return loc, nil
}

func uploadError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, UploadErrorResponse{Success: false, Message: message}, statusCode)
}
