package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"onboarding/internal/kyc/models"
	"onboarding/pkg/domain"
	"onboarding/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	apps map[domain.ApplicationID]*models.Application
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{apps: make(map[domain.ApplicationID]*models.Application)}
}

func cloneApplication(a *models.Application) *models.Application {
	cp := *a
	if a.Nominee != nil {
		n := *a.Nominee
		cp.Nominee = &n
	}
	return &cp
}

func (s *MemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[app.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if err := s.checkIdentityLocked(app.Identity(), app.ID); err != nil {
		return err
	}
	s.apps[app.ID] = cloneApplication(app)
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id domain.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneApplication(app), nil
}

func (s *MemoryStore) FindByKeyword(_ context.Context, keyword string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil, sentinel.ErrNotFound
	}
	for _, app := range s.sortedLocked() {
		if strings.Contains(strings.ToLower(app.FullName), kw) ||
			strings.Contains(strings.ToLower(app.Username), kw) ||
			strings.Contains(strings.ToLower(app.Email), kw) ||
			strings.EqualFold(app.PAN, keyword) ||
			app.Aadhaar == keyword {
			return cloneApplication(app), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) Search(_ context.Context, keyword string) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil, nil
	}
	var out []*models.Application
	for _, app := range s.sortedLocked() {
		if searchMatches(app, keyword, kw) {
			out = append(out, cloneApplication(app))
		}
	}
	return out, nil
}

func searchMatches(app *models.Application, keyword, kwLower string) bool {
	for _, field := range []string{app.FullName, app.Email, app.Phone, app.Address, string(app.Status)} {
		if strings.Contains(strings.ToLower(field), kwLower) {
			return true
		}
	}
	return strings.EqualFold(app.PAN, keyword) ||
		app.Aadhaar == keyword ||
		strings.EqualFold(app.ID.String(), keyword)
}

func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sortedLocked()
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*models.Application, 0, len(all))
	for _, app := range all {
		out = append(out, cloneApplication(app))
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.apps)), nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, status domain.KycStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, app := range s.apps {
		if app.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) LatestByStatus(_ context.Context, status domain.KycStatus, limit int) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Application
	for _, app := range s.sortedLocked() {
		if app.Status != status {
			continue
		}
		out = append(out, cloneApplication(app))
	}
	// sortedLocked is oldest-first; latest means newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreatedBetween(_ context.Context, start, end time.Time) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Application
	for _, app := range s.sortedLocked() {
		if app.CreatedAt.Before(start) || app.CreatedAt.After(end) {
			continue
		}
		out = append(out, cloneApplication(app))
	}
	return out, nil
}

func (s *MemoryStore) CheckIdentityAvailable(_ context.Context, identity models.Identity, exclude domain.ApplicationID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkIdentityLocked(identity, exclude)
}

func (s *MemoryStore) checkIdentityLocked(identity models.Identity, exclude domain.ApplicationID) error {
	for _, app := range s.apps {
		if app.ID == exclude {
			continue
		}
		other := app.Identity()
		switch {
		case strings.EqualFold(other.Email, identity.Email):
			return &DuplicateError{Field: "email"}
		case strings.EqualFold(other.Username, identity.Username):
			return &DuplicateError{Field: "username"}
		case strings.EqualFold(other.PAN, identity.PAN):
			return &DuplicateError{Field: "pan"}
		case other.Aadhaar == identity.Aadhaar:
			return &DuplicateError{Field: "aadhaar"}
		case identity.NomineeAadhaar != "" &&
			(other.Aadhaar == identity.NomineeAadhaar || other.NomineeAadhaar == identity.NomineeAadhaar):
			return &DuplicateError{Field: "nominee aadhaar"}
		case other.NomineeAadhaar != "" && other.NomineeAadhaar == identity.Aadhaar:
			return &DuplicateError{Field: "aadhaar"}
		}
	}
	return nil
}

func (s *MemoryStore) Execute(_ context.Context, id domain.ApplicationID,
	validate func(*models.Application) error,
	mutate func(*models.Application)) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(app); err != nil {
		return nil, err
	}
	updated := cloneApplication(app)
	mutate(updated)
	s.apps[id] = updated
	return cloneApplication(updated), nil
}

// sortedLocked returns applications ordered oldest-first with ID as the
// tiebreaker for deterministic listings. Caller must hold at least a read lock.
func (s *MemoryStore) sortedLocked() []*models.Application {
	out := make([]*models.Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
