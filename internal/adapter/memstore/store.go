// Package memstore is an in-memory job store for tests and single-process development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aiinpocket/HomePage/internal/domain"
)

// Store keeps jobs and owners in maps guarded by a single mutex, which
// serializes every record mutation. Returned jobs are copies.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	owners map[string]*domain.Owner
	now    func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		jobs:   make(map[string]*domain.Job),
		owners: make(map[string]*domain.Owner),
		now:    time.Now,
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Session returns the store itself; memory operations share no connection state.
func (s *Store) Session(_ context.Context) (domain.JobSession, error) {
	return session{s}, nil
}

type session struct{ *Store }

func (session) Close() error { return nil }

func (s *Store) Create(_ context.Context, job *domain.Job, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("insert job: duplicate id %s", job.ID)
	}
	if job.OwnerID != "" && limit > 0 {
		count := 0
		for _, j := range s.jobs {
			if j.OwnerID == job.OwnerID && !j.IsArchived {
				count++
			}
		}
		if count >= limit {
			return &domain.QuotaExceededError{Limit: limit}
		}
	}
	cp := *job
	cp.InputJSON = append([]byte(nil), job.InputJSON...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *Store) GetByResultID(_ context.Context, resultID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if resultID != "" && j.ResultID == resultID && !j.IsArchived {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, j := range s.jobs {
		if j.OwnerID == ownerID && !j.IsArchived {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, j := range s.jobs {
		if j.Status == status && !j.IsArchived {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Transition(_ context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	if !domain.PlainTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status != from {
		return false, nil
	}
	j.Status = to
	j.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) Complete(_ context.Context, jobID string, c domain.Completion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status != domain.JobStatusGenerating {
		return false, nil
	}
	completedAt := c.CompletedAt
	j.Status = domain.JobStatusCompleted
	j.ResultID = c.ResultID
	j.ResultDocument = c.Document
	j.ErrorDetail = ""
	j.CredentialHash = c.CredentialHash
	j.CredentialConsumed = false
	j.CompletedAt = &completedAt
	j.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) Fail(_ context.Context, jobID, detail string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if j.Status != domain.JobStatusGenerating {
		return false, nil
	}
	j.Status = domain.JobStatusFailed
	j.ErrorDetail = detail
	j.ResultDocument = ""
	j.CredentialHash = ""
	j.CredentialConsumed = false
	j.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) ConsumeCredential(_ context.Context, jobID string, verify func(hash string) error) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !j.HasCredential() {
		return nil, domain.ErrCredentialNotFound
	}
	if j.CredentialConsumed {
		return nil, domain.ErrCredentialConsumed
	}
	if err := verify(j.CredentialHash); err != nil {
		return nil, err
	}
	j.CredentialConsumed = true
	j.UpdatedAt = s.now()
	cp := *j
	return &cp, nil
}

func (s *Store) RotateCredential(_ context.Context, jobID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != domain.JobStatusCompleted {
		return fmt.Errorf("%w: job is not completed", domain.ErrInvalidTransition)
	}
	j.CredentialHash = hash
	j.CredentialConsumed = false
	j.UpdatedAt = s.now()
	return nil
}

func (s *Store) ResetForRegeneration(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if !j.Status.Terminal() {
		return fmt.Errorf("%w: job is not in a terminal state", domain.ErrInvalidTransition)
	}
	j.Status = domain.JobStatusPending
	j.ResultID = ""
	j.ResultDocument = ""
	j.ErrorDetail = ""
	j.CredentialHash = ""
	j.CredentialConsumed = false
	j.CompletedAt = nil
	j.UpdatedAt = s.now()
	return nil
}

func (s *Store) Archive(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	j.IsArchived = true
	j.UpdatedAt = s.now()
	return nil
}

func (s *Store) GetOwner(_ context.Context, ownerID string) (*domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.owners[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Store) UpsertOwner(_ context.Context, owner *domain.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *owner
	cp.UpdatedAt = s.now()
	s.owners[owner.ID] = &cp
	return nil
}

var (
	_ domain.JobStore        = (*Store)(nil)
	_ domain.OwnerRepository = (*Store)(nil)
)
