package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	jwtExpDays       = 365
	LeaderboardSize  = 10
	DiscoveriesLimit = 10
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// UserService handles user-related business logic
type UserService struct {
	users        repository.UserRepository
	uploads      repository.UploadRepository
	stats        *StatsService
	jwtSecret    string
	demoUsername string
}

// NewUserService creates a new user service
func NewUserService(
	users repository.UserRepository,
	uploads repository.UploadRepository,
	stats *StatsService,
	jwtSecret, demoUsername string,
) *UserService {
	return &UserService{
		users:        users,
		uploads:      uploads,
		stats:        stats,
		jwtSecret:    jwtSecret,
		demoUsername: demoUsername,
	}
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token claims", errs.ErrUnauthorized)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: user_id not found in token", errs.ErrUnauthorized)
	}

	return userID, nil
}

// CreateUser registers a player and returns it with a signed token
func (s *UserService) CreateUser(ctx context.Context, username string) (*models.User, string, error) {
	if !usernamePattern.MatchString(username) {
		return nil, "", fmt.Errorf("%w: username must be 3-32 characters of letters, digits, '.', '_' or '-'", errs.ErrInvalidInput)
	}

	user, err := s.users.Create(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}

	if _, err := s.stats.Recompute(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to recompute stats after user creation")
	}

	return user, token, nil
}

// EnsureDemoUser creates the demo user when it does not exist yet
func (s *UserService) EnsureDemoUser(ctx context.Context) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, s.demoUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up demo user: %w", err)
	}

	user, err = s.users.Create(ctx, s.demoUsername)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// another instance seeded it first
		return s.users.GetByUsername(ctx, s.demoUsername)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create demo user: %w", err)
	}
	log.Info().Str("username", user.Username).Str("user_id", user.ID).Msg("Demo user created")
	return user, nil
}

// CurrentUser resolves the acting user: the token's user when userID is set, otherwise the demo user
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	if userID != "" {
		return s.users.GetByID(ctx, userID)
	}
	return s.users.GetByUsername(ctx, s.demoUsername)
}

// Leaderboard returns the top players
func (s *UserService) Leaderboard(ctx context.Context) ([]*models.User, error) {
	return s.users.Top(ctx, LeaderboardSize)
}

// Uploads returns the user's uploads newest first
func (s *UserService) Uploads(ctx context.Context, userID string) ([]*models.Upload, error) {
	return s.uploads.ListByUser(ctx, userID)
}

// Discoveries returns the most recent verified plants across all users
func (s *UserService) Discoveries(ctx context.Context) ([]*models.Upload, error) {
	success := models.StatusSuccess
	return s.uploads.ListRecent(ctx, DiscoveriesLimit, &success)
}
