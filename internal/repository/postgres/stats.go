package postgres

import (
	"context"
	"fmt"

	"plant-photo-backend/internal/models"
)

// StatsRepo reads aggregate counters and materializes the published snapshot
type StatsRepo struct{ db *DB }

// NewStatsRepo creates a new stats repository
func NewStatsRepo(db *DB) *StatsRepo { return &StatsRepo{db: db} }

// Totals reads all counters in a single statement so they share one snapshot
func (r *StatsRepo) Totals(ctx context.Context) (models.Totals, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM plant_uploads WHERE verification_status = 'success'),
			(SELECT COALESCE(SUM(trees_planted), 0) FROM users)
	`
	var t models.Totals
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&t.Users, &t.SuccessUploads, &t.Trees); err != nil {
		return models.Totals{}, fmt.Errorf("failed to read totals: %w", err)
	}
	return t, nil
}

// Save upserts the snapshot row
func (r *StatsRepo) Save(ctx context.Context, stats *models.GlobalStats) error {
	query := `
		INSERT INTO global_stats (id, total_trees, total_users, total_photos, countries, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			total_trees = EXCLUDED.total_trees,
			total_users = EXCLUDED.total_users,
			total_photos = EXCLUDED.total_photos,
			countries = EXCLUDED.countries,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Pool.Exec(ctx, query,
		stats.ID, stats.TotalTrees, stats.TotalUsers, stats.TotalPhotos, stats.Countries, stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}
