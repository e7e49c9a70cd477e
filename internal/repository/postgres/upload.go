package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const uploadColumns = `id, user_id, image_hash, file_name, verification_status, points_awarded, location, created_at`

// UploadRepo handles database operations for the upload ledger
type UploadRepo struct{ db *DB }

// NewUploadRepo creates a new upload repository
func NewUploadRepo(db *DB) *UploadRepo { return &UploadRepo{db: db} }

// Commit inserts the upload and credits its owner in one transaction.
// The unique image_hash column decides concurrent races for the same bytes.
func (r *UploadRepo) Commit(ctx context.Context, upload *models.Upload, award int) (owner *models.User, err error) {
	loc, err := encodeLocation(upload.Location)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			owner, err = nil, fmt.Errorf("failed to commit upload: %w", e)
		}
	}()

	id := uuid.New().String()
	createdAt := time.Now().UTC()

	insert := `
		INSERT INTO plant_uploads (` + uploadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (image_hash) DO NOTHING
		RETURNING id
	`
	var inserted string
	err = tx.QueryRow(ctx, insert,
		id, upload.UserID, upload.ImageHash, upload.FileName,
		string(upload.VerificationStatus), upload.PointsAwarded, loc, createdAt,
	).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errs.ErrDuplicate
	case isForeignKeyViolation(err):
		return nil, fmt.Errorf("owner %s: %w", upload.UserID, errs.ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("failed to insert upload: %w", err)
	}

	if award > 0 {
		owner, err = scanUser(tx.QueryRow(ctx, creditQuery, upload.UserID, award))
	} else {
		owner, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, upload.UserID))
	}
	if err != nil {
		return nil, err
	}

	upload.ID = inserted
	upload.CreatedAt = createdAt
	return owner, nil
}

// GetByHash retrieves an upload by content hash
func (r *UploadRepo) GetByHash(ctx context.Context, hash string) (*models.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM plant_uploads WHERE image_hash = $1`
	up, err := scanUpload(r.db.Pool.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload by hash: %w", err)
	}
	return up, nil
}

// ListByUser returns a user's uploads newest first
func (r *UploadRepo) ListByUser(ctx context.Context, userID string) ([]*models.Upload, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM plant_uploads
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user uploads: %w", err)
	}
	return collectUploads(rows)
}

// ListRecent returns uploads newest first, optionally filtered by status
func (r *UploadRepo) ListRecent(ctx context.Context, limit int, status *models.VerificationStatus) ([]*models.Upload, error) {
	query := `
		SELECT ` + uploadColumns + `
		FROM plant_uploads
		WHERE ($1::text IS NULL OR verification_status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	// LIMIT NULL means no limit
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := r.db.Pool.Query(ctx, query, filter, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent uploads: %w", err)
	}
	return collectUploads(rows)
}

// Count returns the number of ledger rows
func (r *UploadRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM plant_uploads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return n, nil
}

func collectUploads(rows pgx.Rows) ([]*models.Upload, error) {
	defer rows.Close()

	uploads := []*models.Upload{}
	for rows.Next() {
		up, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, up)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploads: %w", err)
	}
	return uploads, nil
}

func scanUpload(row pgx.Row) (*models.Upload, error) {
	var (
		up     models.Upload
		status string
		loc    []byte
	)
	if err := row.Scan(&up.ID, &up.UserID, &up.ImageHash, &up.FileName, &status, &up.PointsAwarded, &loc, &up.CreatedAt); err != nil {
		return nil, err
	}
	up.VerificationStatus = models.VerificationStatus(status)
	if len(loc) > 0 {
		var l models.Location
		if err := json.Unmarshal(loc, &l); err != nil {
			return nil, fmt.Errorf("failed to decode location: %w", err)
		}
		up.Location = &l
	}
	return &up, nil
}

// encodeLocation returns jsonb bytes, or nil for SQL NULL
func encodeLocation(loc *models.Location) (any, error) {
	if loc == nil {
		return nil, nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode location: %w", err)
	}
	return b, nil
}
