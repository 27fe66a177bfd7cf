package jobs

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
)

type CredentialOptions struct {
	Length    int
	HashCost  int
	Announcer *announcer
	Metrics   *metrics.Metrics
	Random    io.Reader
}

// CredentialManager issues and redeems one-time numeric download passwords.
// Only bcrypt hashes are persisted.
type CredentialManager struct {
	store     domain.JobRepository
	length    int
	cost      int
	announcer *announcer
	metrics   *metrics.Metrics
	random    io.Reader
}

func NewCredentialManager(store domain.JobRepository, opts CredentialOptions) *CredentialManager {
	m := &CredentialManager{
		store:     store,
		length:    opts.Length,
		cost:      opts.HashCost,
		announcer: opts.Announcer,
		metrics:   opts.Metrics,
		random:    opts.Random,
	}
	if m.length <= 0 {
		m.length = defaultCredentialLength
	}
	if m.cost == 0 {
		m.cost = bcrypt.DefaultCost
	}
	if m.random == nil {
		m.random = rand.Reader
	}
	return m
}

// Issue returns a fresh password and its hash.
func (m *CredentialManager) Issue() (plain, hash string, err error) {
	plain, err = randomDigits(m.random, m.length)
	if err != nil {
		return "", "", fmt.Errorf("generate credential: %w", err)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), m.cost)
	if err != nil {
		return "", "", fmt.Errorf("hash credential: %w", err)
	}
	return plain, string(h), nil
}

// ValidateAndConsume redeems the credential of a job. At most one caller
// succeeds per issued credential; failures leave the job untouched.
func (m *CredentialManager) ValidateAndConsume(ctx context.Context, jobID, password string) (*domain.Job, error) {
	password = strings.TrimSpace(password)
	job, err := m.store.ConsumeCredential(ctx, jobID, func(hash string) error {
		return verifyPassword(hash, password)
	})
	if err != nil {
		if isCredentialError(err) {
			m.metrics.IncrementCredentialFailures()
		}
		return nil, err
	}
	return job, nil
}

// Regenerate issues a new credential for a completed job, discarding the
// previous one, and notifies the contact address. It returns the new password.
func (m *CredentialManager) Regenerate(ctx context.Context, jobID string) (string, error) {
	plain, hash, err := m.Issue()
	if err != nil {
		return "", err
	}
	if err := m.store.RotateCredential(ctx, jobID, hash); err != nil {
		return "", err
	}
	m.metrics.IncrementCredentialsRotated()

	if job, err := m.store.GetByID(ctx, jobID); err == nil {
		m.announcer.credentialRotated(ctx, job, plain)
	}
	return plain, nil
}

func verifyPassword(hash, password string) error {
	if password == "" {
		return domain.ErrCredentialMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrCredentialMismatch
	}
	if err != nil {
		return fmt.Errorf("verify credential: %w", err)
	}
	return nil
}

func isCredentialError(err error) bool {
	return errors.Is(err, domain.ErrCredentialNotFound) ||
		errors.Is(err, domain.ErrCredentialConsumed) ||
		errors.Is(err, domain.ErrCredentialMismatch)
}

func randomDigits(r io.Reader, n int) (string, error) {
	ten := big.NewInt(10)
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(r, ten)
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}
