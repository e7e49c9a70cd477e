package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, points, trees_planted, created_at`

// UserRepo handles database operations for users
type UserRepo struct{ db *DB }

// NewUserRepo creates a new user repository
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a user with zero points
func (r *UserRepo) Create(ctx context.Context, username string) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, points, trees_planted, created_at)
		VALUES ($1, $2, 0, 0, $3)
	`
	user := &models.User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.db.Pool.Exec(ctx, query, user.ID, user.Username, user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q: %w", username, errs.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByUsername retrieves a user by username
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.db.Pool.QueryRow(ctx, query, username))
}

// AddPoints credits points and one tree. Non-positive deltas only read the row.
func (r *UserRepo) AddPoints(ctx context.Context, userID string, delta int) (*models.User, error) {
	if delta <= 0 {
		return r.GetByID(ctx, userID)
	}
	return scanUser(r.db.Pool.QueryRow(ctx, creditQuery, userID, delta))
}

// Top returns the highest scoring users
func (r *UserRepo) Top(ctx context.Context, n int) ([]*models.User, error) {
	if n <= 0 {
		return []*models.User{}, nil
	}
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY points DESC, created_at ASC, id ASC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, n)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Points, &u.TreesPlanted, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

const creditQuery = `
	UPDATE users
	SET points = points + $2, trees_planted = trees_planted + 1
	WHERE id = $1
	RETURNING ` + userColumns

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.Points, &u.TreesPlanted, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
