package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	globalStatsID = "global"
	// location is not resolved to a country, so the panel shows a single one
	countriesPlaceholder = 1
)

// StatsCache mirrors the published snapshot outside the process
type StatsCache interface {
	Save(ctx context.Context, stats *models.GlobalStats) error
	Load(ctx context.Context) (*models.GlobalStats, error)
}

// StatsService derives GlobalStats from the user directory and the upload ledger
type StatsService struct {
	repo  repository.StatsRepository
	cache StatsCache  // optional
	feed  Broadcaster // optional
	now   func() time.Time

	mu      sync.Mutex // serializes Recompute
	current *models.GlobalStats
	guard   sync.RWMutex // protects current
}

// NewStatsService creates a stats service. cache and feed may be nil.
func NewStatsService(repo repository.StatsRepository, cache StatsCache, feed Broadcaster) *StatsService {
	return &StatsService{
		repo:  repo,
		cache: cache,
		feed:  feed,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Recompute reads live counters, stores the snapshot and publishes it.
// Calls are serialized so a later call never publishes an older view.
func (s *StatsService) Recompute(ctx context.Context) (*models.GlobalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read totals: %w", err)
	}

	stats := &models.GlobalStats{
		ID:          globalStatsID,
		TotalTrees:  totals.Trees,
		TotalUsers:  totals.Users,
		TotalPhotos: totals.SuccessUploads,
		Countries:   countriesPlaceholder,
		UpdatedAt:   s.now(),
	}

	if err := s.repo.Save(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save stats: %w", err)
	}

	s.guard.Lock()
	s.current = stats
	s.guard.Unlock()

	if s.cache != nil {
		if err := s.cache.Save(ctx, stats); err != nil {
			log.Warn().Err(err).Msg("Failed to mirror stats to cache")
		}
	}
	if s.feed != nil {
		s.feed.Broadcast(WSMessage{Type: MsgStatsUpdated, Data: stats})
	}

	log.Debug().
		Int("total_users", stats.TotalUsers).
		Int("total_photos", stats.TotalPhotos).
		Int("total_trees", stats.TotalTrees).
		Msg("Stats recomputed")

	cp := *stats
	return &cp, nil
}

// Current returns the freshest published snapshot. The cache is shared between instances, so it wins
// over the in-process copy when it is newer. With neither available the stats are recomputed.
func (s *StatsService) Current(ctx context.Context) (*models.GlobalStats, error) {
	s.guard.RLock()
	var local *models.GlobalStats
	if s.current != nil {
		cp := *s.current
		local = &cp
	}
	s.guard.RUnlock()

	if s.cache != nil {
		cached, err := s.cache.Load(ctx)
		switch {
		case err == nil:
			if local == nil || cached.UpdatedAt.After(local.UpdatedAt) {
				return cached, nil
			}
		case !errors.Is(err, errs.ErrNotFound):
			log.Warn().Err(err).Msg("Failed to read cached stats")
		}
	}

	if local != nil {
		return local, nil
	}
	return s.Recompute(ctx)
}
