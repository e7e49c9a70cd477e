package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// DefaultMaxUploadSize is the largest accepted image
const DefaultMaxUploadSize int64 = 10 << 20

// Response messages shown to the player
const (
	MsgSuccess     = "🌱 Plant Verified!"
	MsgNotPlant    = "Plant not recognised, try again"
	MsgDuplicate   = "Duplicate not allowed"
	MsgUnavailable = "Verification unavailable, try again"
)

// UploadRequest is one photo submission
type UploadRequest struct {
	UserID      string
	FileName    string
	ContentType string
	Data        []byte
	Location    *models.Location
}

// UploadService runs the upload pipeline: validate, hash, dedup, verify, score, persist, refresh stats
type UploadService struct {
	uploads  repository.UploadRepository
	verifier Verifier
	policy   ScoringPolicy
	stats    *StatsService
	archive  ImageArchive // optional
	feed     Broadcaster  // optional
	maxSize  int64
}

// UploadOption customizes an UploadService
type UploadOption func(*UploadService)

func WithArchive(a ImageArchive) UploadOption { return func(s *UploadService) { s.archive = a } }

func WithFeed(b Broadcaster) UploadOption { return func(s *UploadService) { s.feed = b } }

func WithMaxSize(n int64) UploadOption {
	return func(s *UploadService) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// NewUploadService creates the upload orchestrator
func NewUploadService(
	uploads repository.UploadRepository,
	verifier Verifier,
	policy ScoringPolicy,
	stats *StatsService,
	opts ...UploadOption,
) *UploadService {
	s := &UploadService{
		uploads:  uploads,
		verifier: verifier,
		policy:   policy,
		stats:    stats,
		maxSize:  DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxSize returns the accepted image size limit in bytes
func (s *UploadService) MaxSize() int64 { return s.maxSize }

// Upload processes one submission. Business outcomes (duplicate, not_plant, oracle unavailable)
// come back as results; errors are either errs.ErrInvalidInput or infrastructure failures.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*models.UploadResult, error) {
	contentType, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	hash := HashImage(req.Data)
	logger := log.With().Str("user_id", req.UserID).Str("image_hash", hash).Logger()

	_, err = s.uploads.GetByHash(ctx, hash)
	switch {
	case err == nil:
		logger.Info().Msg("Duplicate upload rejected")
		return duplicateResult(), nil
	case !errors.Is(err, errs.ErrNotFound):
		return nil, fmt.Errorf("failed to check duplicate: %w", err)
	}

	outcome, err := s.verifier.Verify(ctx, VerificationInput{
		Data:        req.Data,
		ContentType: contentType,
		FileName:    req.FileName,
	})
	if errors.Is(err, errs.ErrUpstream) {
		logger.Warn().Err(err).Msg("Verification unavailable")
		return &models.UploadResult{
			Success: false,
			Status:  models.StatusNotPlant,
			Message: MsgUnavailable,
			Points:  0,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify image: %w", err)
	}

	points := s.policy.Score(outcome)
	upload := &models.Upload{
		UserID:             req.UserID,
		ImageHash:          hash,
		FileName:           req.FileName,
		VerificationStatus: outcome,
		PointsAwarded:      points,
		Location:           req.Location,
	}

	if s.archive != nil {
		if err := s.archive.Store(ctx, hash, contentType, req.Data); err != nil {
			logger.Warn().Err(err).Msg("Failed to archive image")
		}
	}

	owner, err := s.uploads.Commit(ctx, upload, points)
	if errors.Is(err, errs.ErrDuplicate) {
		logger.Info().Msg("Duplicate upload lost commit race")
		return duplicateResult(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist upload: %w", err)
	}

	// The row is committed; a client disconnect must not leave stats behind it.
	ctx = context.WithoutCancel(ctx)
	if _, err := s.stats.Recompute(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to recompute stats after upload")
	}

	logger.Info().
		Str("upload_id", upload.ID).
		Str("status", string(outcome)).
		Int("points", points).
		Int("user_points", owner.Points).
		Msg("Upload processed")

	if outcome == models.StatusSuccess {
		if s.feed != nil {
			s.feed.Broadcast(WSMessage{
				Type: MsgUploadVerified,
				Data: map[string]interface{}{
					"upload":   upload,
					"username": owner.Username,
				},
			})
		}
		return &models.UploadResult{
			Success: true,
			Status:  models.StatusSuccess,
			Message: MsgSuccess,
			Points:  points,
			Upload:  upload,
		}, nil
	}

	return &models.UploadResult{
		Success: false,
		Status:  models.StatusNotPlant,
		Message: MsgNotPlant,
		Points:  0,
		Upload:  upload,
	}, nil
}

// validate checks presence, size, media type and location, and returns the effective content type
func (s *UploadService) validate(req UploadRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", fmt.Errorf("%w: image file is required", errs.ErrInvalidInput)
	}
	if int64(len(req.Data)) > s.maxSize {
		return "", fmt.Errorf("%w: image exceeds %d bytes", errs.ErrInvalidInput, s.maxSize)
	}

	contentType := DetectImageType(req.ContentType, req.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: only image files are allowed", errs.ErrInvalidInput)
	}

	if req.Location != nil && !req.Location.Valid() {
		return "", fmt.Errorf("%w: location out of range", errs.ErrInvalidInput)
	}
	return contentType, nil
}

// DetectImageType trusts a declared type unless it is missing or generic, then sniffs the bytes
func DetectImageType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared == "" || declared == "application/octet-stream" {
		return http.DetectContentType(data)
	}
	return declared
}

func duplicateResult() *models.UploadResult {
	return &models.UploadResult{
		Success: false,
		Status:  models.StatusDuplicate,
		Message: MsgDuplicate,
		Points:  0,
	}
}
