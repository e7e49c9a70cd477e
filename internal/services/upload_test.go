package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

type uploadFixture struct {
	store   *memory.Store
	stats   *StatsService
	feed    *recordingFeed
	archive *recordingArchive
	svc     *UploadService
	alice   *models.User
}

func newUploadFixture(t *testing.T, v Verifier, opts ...UploadOption) *uploadFixture {
	t.Helper()
	store := memory.New()
	feed := &recordingFeed{}
	archive := &recordingArchive{}
	stats := NewStatsService(store.Stats(), nil, feed)

	alice, err := store.Users().Create(context.Background(), "alice")
	require.NoError(t, err)

	opts = append([]UploadOption{WithArchive(archive), WithFeed(feed)}, opts...)
	svc := NewUploadService(store.Uploads(), NewTimeoutVerifier(v, time.Second), NewScoringPolicy(50), stats, opts...)
	return &uploadFixture{store: store, stats: stats, feed: feed, archive: archive, svc: svc, alice: alice}
}

func (f *uploadFixture) user(t *testing.T) *models.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), f.alice.ID)
	require.NoError(t, err)
	return u
}

func (f *uploadFixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.Uploads().Count(context.Background())
	require.NoError(t, err)
	return n
}

// requireStatsConsistent checks the published snapshot against a fresh derivation
func (f *uploadFixture) requireStatsConsistent(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	cur, err := f.stats.Current(ctx)
	require.NoError(t, err)
	totals, err := f.store.Stats().Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, totals.Users, cur.TotalUsers)
	require.Equal(t, totals.SuccessUploads, cur.TotalPhotos)
	require.Equal(t, totals.Trees, cur.TotalTrees)
}

func TestUpload_SuccessThenDuplicate(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusSuccess})
	ctx := context.Background()
	img := pngBytes("fern")

	res, err := f.svc.Upload(ctx, UploadRequest{UserID: f.alice.ID, FileName: "fern.png", Data: img})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, models.StatusSuccess, res.Status)
	require.Equal(t, MsgSuccess, res.Message)
	require.Equal(t, 50, res.Points)
	require.NotNil(t, res.Upload)
	require.Equal(t, HashImage(img), res.Upload.ImageHash)
	require.Equal(t, "fern.png", res.Upload.FileName)

	u := f.user(t)
	require.Equal(t, 50, u.Points)
	require.Equal(t, 1, u.TreesPlanted)
	require.Equal(t, 1, f.count(t))
	f.requireStatsConsistent(t)
	require.Equal(t, []string{HashImage(img)}, f.archive.hashes)
	require.Equal(t, []string{MsgStatsUpdated, MsgUploadVerified}, f.feed.types())

	res, err = f.svc.Upload(ctx, UploadRequest{UserID: f.alice.ID, FileName: "copy.png", Data: img})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, models.StatusDuplicate, res.Status)
	require.Equal(t, MsgDuplicate, res.Message)
	require.Zero(t, res.Points)
	require.Nil(t, res.Upload)

	u = f.user(t)
	require.Equal(t, 50, u.Points)
	require.Equal(t, 1, u.TreesPlanted)
	require.Equal(t, 1, f.count(t))
	require.Len(t, f.archive.hashes, 1)
}

func TestUpload_NotPlant(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusNotPlant})
	loc := &models.Location{Lat: 12.97, Lng: 77.59}

	res, err := f.svc.Upload(context.Background(), UploadRequest{UserID: f.alice.ID, FileName: "rock.png", Data: pngBytes("rock"), Location: loc})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, models.StatusNotPlant, res.Status)
	require.Equal(t, MsgNotPlant, res.Message)
	require.Zero(t, res.Points)
	require.NotNil(t, res.Upload)
	require.Equal(t, models.StatusNotPlant, res.Upload.VerificationStatus)
	require.Equal(t, loc, res.Upload.Location)

	u := f.user(t)
	require.Zero(t, u.Points)
	require.Zero(t, u.TreesPlanted)
	require.Equal(t, 1, f.count(t))
	f.requireStatsConsistent(t)
	require.Equal(t, []string{MsgStatsUpdated}, f.feed.types())

	// a rejected image still counts as seen
	res, err = f.svc.Upload(context.Background(), UploadRequest{UserID: f.alice.ID, FileName: "rock.png", Data: pngBytes("rock")})
	require.NoError(t, err)
	require.Equal(t, models.StatusDuplicate, res.Status)
}

func TestUpload_VerifierUnavailable(t *testing.T) {
	calls := 0
	flaky := verifierFunc(func(context.Context, VerificationInput) (models.VerificationStatus, error) {
		calls++
		if calls == 1 {
			return "", errors.New("oracle down")
		}
		return models.StatusSuccess, nil
	})
	f := newUploadFixture(t, flaky)
	img := pngBytes("oak")

	res, err := f.svc.Upload(context.Background(), UploadRequest{UserID: f.alice.ID, FileName: "oak.png", Data: img})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, models.StatusNotPlant, res.Status)
	require.Equal(t, MsgUnavailable, res.Message)
	require.Nil(t, res.Upload)
	require.Zero(t, f.count(t))

	// nothing was recorded, so the retry is verified again
	res, err = f.svc.Upload(context.Background(), UploadRequest{UserID: f.alice.ID, FileName: "oak.png", Data: img})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, res.Status)
	require.Equal(t, 50, f.user(t).Points)
}

func TestUpload_InvalidInput(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusSuccess}, WithMaxSize(64))

	tests := []struct {
		name string
		req  UploadRequest
	}{
		{"empty", UploadRequest{UserID: f.alice.ID, FileName: "x.png"}},
		{"too large", UploadRequest{UserID: f.alice.ID, FileName: "x.png", Data: pngBytes(string(make([]byte, 100)))}},
		{"text declared", UploadRequest{UserID: f.alice.ID, FileName: "x.txt", ContentType: "text/plain", Data: pngBytes("a")}},
		{"text sniffed", UploadRequest{UserID: f.alice.ID, FileName: "x.txt", Data: []byte("just some words")}},
		{"bad latitude", UploadRequest{UserID: f.alice.ID, FileName: "x.png", Data: pngBytes("b"), Location: &models.Location{Lat: 91}}},
		{"bad longitude", UploadRequest{UserID: f.alice.ID, FileName: "x.png", Data: pngBytes("c"), Location: &models.Location{Lng: -181}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(context.Background(), tt.req)
			require.ErrorIs(t, err, errs.ErrInvalidInput)
		})
	}
	require.Zero(t, f.count(t))
	require.Zero(t, f.user(t).Points)
}

func TestUpload_DeclaredImageTypeAccepted(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusSuccess})

	res, err := f.svc.Upload(context.Background(), UploadRequest{
		UserID: f.alice.ID, FileName: "leaf.heic", ContentType: "image/heic", Data: []byte("opaque heic bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusSuccess, res.Status)
}

func TestUpload_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusSuccess})
	f.archive.err = errors.New("s3 down")

	res, err := f.svc.Upload(context.Background(), UploadRequest{UserID: f.alice.ID, FileName: "a.png", Data: pngBytes("a")})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestUpload_UnknownUser(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusSuccess})

	_, err := f.svc.Upload(context.Background(), UploadRequest{UserID: "ghost", FileName: "a.png", Data: pngBytes("a")})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Zero(t, f.count(t))
}

func TestUpload_ConcurrentSameImage(t *testing.T) {
	f := newUploadFixture(t, FixedVerifier{Outcome: models.StatusSuccess})
	img := pngBytes("birch")

	const workers = 12
	results := make([]*models.UploadResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Upload(context.Background(), UploadRequest{UserID: f.alice.ID, FileName: fmt.Sprintf("%d.png", i), Data: img})
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, r := range results {
		switch r.Status {
		case models.StatusSuccess:
			successes++
		case models.StatusDuplicate:
		default:
			t.Fatalf("unexpected status %q", r.Status)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, f.count(t))
	require.Equal(t, 50, f.user(t).Points)
	f.requireStatsConsistent(t)
}

func TestUpload_AliceScenario(t *testing.T) {
	outcomes := []models.VerificationStatus{models.StatusSuccess, models.StatusNotPlant, models.StatusSuccess}
	var mu sync.Mutex
	next := verifierFunc(func(context.Context, VerificationInput) (models.VerificationStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		o := outcomes[0]
		outcomes = outcomes[1:]
		return o, nil
	})
	f := newUploadFixture(t, next)
	ctx := context.Background()

	for _, seed := range []string{"p1", "p2", "p3"} {
		_, err := f.svc.Upload(ctx, UploadRequest{UserID: f.alice.ID, FileName: seed + ".png", Data: pngBytes(seed)})
		require.NoError(t, err)
		f.requireStatsConsistent(t)
	}

	u := f.user(t)
	require.Equal(t, 100, u.Points)
	require.Equal(t, 2, u.TreesPlanted)

	mine, err := f.store.Uploads().ListByUser(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	require.Equal(t, "p3.png", mine[0].FileName)

	cur, err := f.stats.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cur.TotalPhotos)
	require.Equal(t, 2, cur.TotalTrees)
	require.Equal(t, 1, cur.TotalUsers)
}

func TestDetectImageType(t *testing.T) {
	require.Equal(t, "image/png", DetectImageType("", pngBytes("x")))
	require.Equal(t, "image/png", DetectImageType("application/octet-stream", pngBytes("x")))
	require.Equal(t, "image/jpeg", DetectImageType("IMAGE/JPEG; charset=binary", nil))
	require.Equal(t, "text/plain; charset=utf-8", DetectImageType("", []byte("hello")))
}

func TestUpload_StatsRefreshedWhenClientGoesAway(t *testing.T) {
	store := memory.New()
	feed := &recordingFeed{}
	stats := NewStatsService(ctxStatsRepo{store.Stats()}, nil, feed)
	alice, err := store.Users().Create(context.Background(), "alice")
	require.NoError(t, err)
	_, err = stats.Recompute(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewUploadService(
		cancelOnCommit{UploadRepository: store.Uploads(), cancel: cancel},
		FixedVerifier{Outcome: models.StatusSuccess},
		NewScoringPolicy(50),
		stats,
		WithFeed(feed),
	)

	res, err := svc.Upload(ctx, UploadRequest{UserID: alice.ID, Data: pngBytes("oak")})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Error(t, ctx.Err())

	cur, err := stats.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, cur.TotalPhotos)
	require.Equal(t, 1, cur.TotalTrees)
	require.Equal(t, []string{MsgStatsUpdated, MsgStatsUpdated, MsgUploadVerified}, feed.types())
}
