package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

func TestStatsService_RecomputeMatchesLiveState(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	cache := &memoryCache{}
	feed := &recordingFeed{}
	stats := NewStatsService(store.Stats(), cache, feed)

	got, err := stats.Recompute(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, got.TotalUsers)
	require.Equal(t, 1, got.Countries)

	alice, err := store.Users().Create(ctx, "alice")
	require.NoError(t, err)
	_, err = store.Users().Create(ctx, "bob")
	require.NoError(t, err)
	_, err = store.Uploads().Commit(ctx, &models.Upload{UserID: alice.ID, ImageHash: "h1", VerificationStatus: models.StatusSuccess, PointsAwarded: 50}, 50)
	require.NoError(t, err)
	_, err = store.Uploads().Commit(ctx, &models.Upload{UserID: alice.ID, ImageHash: "h2", VerificationStatus: models.StatusNotPlant}, 0)
	require.NoError(t, err)

	got, err = stats.Recompute(ctx)
	require.NoError(t, err)
	require.Equal(t, "global", got.ID)
	require.Equal(t, 2, got.TotalUsers)
	require.Equal(t, 1, got.TotalPhotos)
	require.Equal(t, 1, got.TotalTrees)
	require.False(t, got.UpdatedAt.IsZero())

	cached, err := cache.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cached.TotalUsers)
	require.Equal(t, []string{MsgStatsUpdated, MsgStatsUpdated}, feed.types())

	cur, err := stats.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, got.TotalUsers, cur.TotalUsers)
}

func TestStatsService_CurrentFallsBackToCache(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	cache := &memoryCache{stats: &models.GlobalStats{ID: "global", TotalUsers: 42}}
	stats := NewStatsService(store.Stats(), cache, nil)

	cur, err := stats.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 42, cur.TotalUsers)
}

func TestStatsService_CurrentRecomputesWhenEmpty(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, err := store.Users().Create(ctx, "alice")
	require.NoError(t, err)

	stats := NewStatsService(store.Stats(), nil, nil)
	cur, err := stats.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cur.TotalUsers)
}

func TestStatsService_CacheFailureIsNotFatal(t *testing.T) {
	store := memory.New()
	stats := NewStatsService(store.Stats(), &memoryCache{saveErr: errors.New("down")}, nil)

	_, err := stats.Recompute(context.Background())
	require.NoError(t, err)
}

func TestStatsService_CurrentPrefersNewerSnapshot(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	cache := &memoryCache{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// two instances over the same ledger and cache
	a := NewStatsService(store.Stats(), cache, nil)
	a.now = func() time.Time { return base }
	b := NewStatsService(store.Stats(), cache, nil)
	b.now = func() time.Time { return base.Add(time.Minute) }

	_, err := a.Recompute(ctx)
	require.NoError(t, err)

	_, err = store.Users().Create(ctx, "alice")
	require.NoError(t, err)
	_, err = b.Recompute(ctx)
	require.NoError(t, err)

	cur, err := a.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cur.TotalUsers)

	// a failed mirror leaves the cache behind; the local snapshot is newer
	cache.saveErr = errors.New("down")
	a.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = store.Users().Create(ctx, "bob")
	require.NoError(t, err)
	_, err = a.Recompute(ctx)
	require.NoError(t, err)

	cur, err = a.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cur.TotalUsers)
}
