package services

import (
	"context"
	"sync"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository"
)

type recordingFeed struct {
	mu       sync.Mutex
	messages []WSMessage
}

func (f *recordingFeed) Broadcast(m WSMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
}

func (f *recordingFeed) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Type)
	}
	return out
}

type memoryCache struct {
	mu      sync.Mutex
	stats   *models.GlobalStats
	saveErr error
}

func (c *memoryCache) Save(_ context.Context, s *models.GlobalStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	cp := *s
	c.stats = &cp
	return nil
}

func (c *memoryCache) Load(_ context.Context) (*models.GlobalStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		return nil, errs.ErrNotFound
	}
	cp := *c.stats
	return &cp, nil
}

type recordingArchive struct {
	mu     sync.Mutex
	hashes []string
	err    error
}

func (a *recordingArchive) Store(_ context.Context, hash, _ string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hashes = append(a.hashes, hash)
	return a.err
}

type verifierFunc func(ctx context.Context, in VerificationInput) (models.VerificationStatus, error)

func (f verifierFunc) Verify(ctx context.Context, in VerificationInput) (models.VerificationStatus, error) {
	return f(ctx, in)
}

// pngBytes returns a payload sniffed as image/png, made unique by seed
func pngBytes(seed string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), []byte(seed)...)
}

// ctxStatsRepo fails like a network-backed repository once ctx is done
type ctxStatsRepo struct {
	repository.StatsRepository
}

func (r ctxStatsRepo) Totals(ctx context.Context) (models.Totals, error) {
	if err := ctx.Err(); err != nil {
		return models.Totals{}, err
	}
	return r.StatsRepository.Totals(ctx)
}

func (r ctxStatsRepo) Save(ctx context.Context, stats *models.GlobalStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.StatsRepository.Save(ctx, stats)
}

// cancelOnCommit cancels the request right after the ledger write succeeds
type cancelOnCommit struct {
	repository.UploadRepository
	cancel context.CancelFunc
}

func (r cancelOnCommit) Commit(ctx context.Context, upload *models.Upload, award int) (*models.User, error) {
	owner, err := r.UploadRepository.Commit(ctx, upload, award)
	r.cancel()
	return owner, err
}

// cancelOnCreate cancels the request right after the user row is written
type cancelOnCreate struct {
	repository.UserRepository
	cancel context.CancelFunc
}

func (r cancelOnCreate) Create(ctx context.Context, username string) (*models.User, error) {
	user, err := r.UserRepository.Create(ctx, username)
	r.cancel()
	return user, err
}
