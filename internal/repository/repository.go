// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"plant-photo-backend/internal/models"
)

// UserRepository is the user directory.
type UserRepository interface {
	// Create inserts a user with zero points. Fails with errs.ErrAlreadyExists on a taken username.
	Create(ctx context.Context, username string) (*models.User, error)
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByUsername loads a user by username.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// AddPoints credits a positive delta and one planted tree. Non-positive deltas change nothing.
	AddPoints(ctx context.Context, userID string, delta int) (*models.User, error)
	// Top returns at most n users by points descending, ties in insertion order.
	Top(ctx context.Context, n int) ([]*models.User, error)
}

// UploadRepository is the append-only upload ledger.
type UploadRepository interface {
	// Commit assigns ID and CreatedAt, inserts the upload if its hash is new and, when award > 0,
	// credits the owner in the same atomic unit. Returns the owner as of the commit.
	// Fails with errs.ErrDuplicate when the hash is already present and errs.ErrNotFound for an unknown owner.
	Commit(ctx context.Context, upload *models.Upload, award int) (*models.User, error)
	// GetByHash looks up an upload by content hash.
	GetByHash(ctx context.Context, hash string) (*models.Upload, error)
	// ListByUser returns the user's uploads newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Upload, error)
	// ListRecent returns uploads newest first, optionally filtered by status. limit <= 0 means no limit.
	ListRecent(ctx context.Context, limit int, status *models.VerificationStatus) ([]*models.Upload, error)
	// Count returns the number of ledger rows.
	Count(ctx context.Context) (int, error)
}

// StatsRepository reads aggregate counters and stores the published snapshot.
type StatsRepository interface {
	// Totals reads user and upload counters in one consistent view.
	Totals(ctx context.Context) (models.Totals, error)
	// Save stores the latest published snapshot.
	Save(ctx context.Context, stats *models.GlobalStats) error
}

// Store groups the repositories of one backend.
type Store interface {
	Users() UserRepository
	Uploads() UploadRepository
	Stats() StatsRepository
	Close()
}
