// Package memory is an in-process implementation of the repository interfaces.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository"

	"github.com/google/uuid"
)

// Store keeps users, uploads and the stats snapshot in maps guarded by a single RWMutex.
// Every mutation is one critical section, so readers never see a half-applied write.
type Store struct {
	mu sync.RWMutex

	users      map[string]*models.User
	byUsername map[string]string
	userOrder  []string

	uploads []*models.Upload // append order
	byHash  map[string]*models.Upload

	stats *models.GlobalStats

	now func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:      make(map[string]*models.User),
		byUsername: make(map[string]string),
		byHash:     make(map[string]*models.Upload),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the user directory view
func (s *Store) Users() repository.UserRepository { return (*userRepo)(s) }

// Uploads returns the upload ledger view
func (s *Store) Uploads() repository.UploadRepository { return (*uploadRepo)(s) }

// Stats returns the stats view
func (s *Store) Stats() repository.StatsRepository { return (*statsRepo)(s) }

// Close is a no-op
func (s *Store) Close() {}

type userRepo Store

func (r *userRepo) Create(_ context.Context, username string) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[username]; ok {
		return nil, fmt.Errorf("username %q: %w", username, errs.ErrAlreadyExists)
	}

	user := &models.User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: s.now(),
	}
	s.users[user.ID] = user
	s.byUsername[username] = user.ID
	s.userOrder = append(s.userOrder, user.ID)

	cp := *user
	return &cp, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (r *userRepo) AddPoints(_ context.Context, userID string, delta int) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	credit(user, delta)
	cp := *user
	return &cp, nil
}

func (r *userRepo) Top(_ context.Context, n int) ([]*models.User, error) {
	s := (*Store)(r)
	if n <= 0 {
		return []*models.User{}, nil
	}

	s.mu.RLock()
	out := make([]*models.User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		cp := *s.users[id]
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// credit applies a points award; positive awards also count one tree
func credit(user *models.User, delta int) {
	if delta <= 0 {
		return
	}
	user.Points += delta
	user.TreesPlanted++
}

type uploadRepo Store

func (r *uploadRepo) Commit(_ context.Context, upload *models.Upload, award int) (*models.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[upload.ImageHash]; ok {
		return nil, errs.ErrDuplicate
	}
	owner, ok := s.users[upload.UserID]
	if !ok {
		return nil, fmt.Errorf("owner %s: %w", upload.UserID, errs.ErrNotFound)
	}

	upload.ID = uuid.New().String()
	upload.CreatedAt = s.now()

	stored := copyUpload(upload)
	s.uploads = append(s.uploads, stored)
	s.byHash[stored.ImageHash] = stored
	credit(owner, award)

	cp := *owner
	return &cp, nil
}

func (r *uploadRepo) GetByHash(_ context.Context, hash string) (*models.Upload, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	upload, ok := s.byHash[hash]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyUpload(upload), nil
}

func (r *uploadRepo) ListByUser(_ context.Context, userID string) ([]*models.Upload, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Upload{}
	for i := len(s.uploads) - 1; i >= 0; i-- {
		if s.uploads[i].UserID == userID {
			out = append(out, copyUpload(s.uploads[i]))
		}
	}
	return out, nil
}

func (r *uploadRepo) ListRecent(_ context.Context, limit int, status *models.VerificationStatus) ([]*models.Upload, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Upload{}
	for i := len(s.uploads) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if status != nil && s.uploads[i].VerificationStatus != *status {
			continue
		}
		out = append(out, copyUpload(s.uploads[i]))
	}
	return out, nil
}

func (r *uploadRepo) Count(_ context.Context) (int, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.uploads), nil
}

func copyUpload(u *models.Upload) *models.Upload {
	cp := *u
	if u.Location != nil {
		loc := *u.Location
		cp.Location = &loc
	}
	return &cp
}

type statsRepo Store

func (r *statsRepo) Totals(_ context.Context) (models.Totals, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := models.Totals{Users: len(s.users)}
	for _, u := range s.users {
		t.Trees += u.TreesPlanted
	}
	for _, up := range s.uploads {
		if up.VerificationStatus == models.StatusSuccess {
			t.SuccessUploads++
		}
	}
	return t, nil
}

func (r *statsRepo) Save(_ context.Context, stats *models.GlobalStats) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *stats
	s.stats = &cp
	return nil
}
