package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiinpocket/HomePage/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &domain.Job{ID: "j1", OwnerID: "o1", ProjectName: "Acme", InputJSON: []byte(`{"template_id":"modern","fields":{}}`), Status: domain.JobStatusPending}
	require.NoError(t, s.Create(ctx, job, 5))

	ok, err := s.Transition(ctx, "j1", domain.JobStatusPending, domain.JobStatusGenerating)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Transition(ctx, "j1", domain.JobStatusPending, domain.JobStatusGenerating)
	require.NoError(t, err)
	assert.False(t, ok, "second dispatch must observe a non-pending job")

	completedAt := time.Now().UTC().Truncate(time.Millisecond)
	ok, err = s.Complete(ctx, "j1", domain.Completion{ResultID: "r1", Document: "<html></html>", CredentialHash: "h1", CompletedAt: completedAt})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, "o1", got.OwnerID)
	assert.Equal(t, "<html></html>", got.ResultDocument)
	assert.JSONEq(t, `{"template_id":"modern","fields":{}}`, string(got.InputJSON))
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completedAt.Equal(*got.CompletedAt))

	byResult, err := s.GetByResultID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "j1", byResult.ID)
	_, err = s.GetByResultID(ctx, "r2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	consumed, err := s.ConsumeCredential(ctx, "j1", func(hash string) error {
		if hash != "h1" {
			return domain.ErrCredentialMismatch
		}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, consumed.CredentialConsumed)

	_, err = s.ConsumeCredential(ctx, "j1", func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrCredentialConsumed)

	require.NoError(t, s.RotateCredential(ctx, "j1", "h2"))
	got, err = s.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CredentialHash)
	assert.False(t, got.CredentialConsumed)
	assert.Equal(t, "<html></html>", got.ResultDocument)

	require.NoError(t, s.ResetForRegeneration(ctx, "j1"))
	got, err = s.GetByID(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Empty(t, got.CredentialHash)
	assert.Nil(t, got.CompletedAt)
}

func TestCreateQuotaSerializes(t *testing.T) {
	s := openTestStore(t)
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Create(context.Background(), &domain.Job{ID: fmt.Sprintf("j%d", i), OwnerID: "o1", InputJSON: []byte(`{}`), Status: domain.JobStatusPending}, 3)
			if err == nil {
				accepted.Add(1)
				return
			}
			if !errors.Is(err, domain.ErrQuotaExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 3, accepted.Load())
}

func TestSessionAndListing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, status := range []domain.JobStatus{domain.JobStatusPending, domain.JobStatusDraft, domain.JobStatusPending} {
		require.NoError(t, s.Create(ctx, &domain.Job{
			ID:        fmt.Sprintf("j%d", i),
			InputJSON: []byte(`{}`),
			Status:    status,
			CreatedAt: time.Unix(int64(100+i), 0),
		}, 0))
	}

	sess, err := s.Session(ctx)
	require.NoError(t, err)
	defer sess.Close()

	pending, err := sess.ListByStatus(ctx, domain.JobStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "j0", pending[0].ID)

	_, err = sess.Transition(ctx, "missing", domain.JobStatusPending, domain.JobStatusGenerating)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOwnerUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetOwner(ctx, "o1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.UpsertOwner(ctx, &domain.Owner{ID: "o1", Tier: domain.OwnerTierBasic, MaxJobs: 15}))
	require.NoError(t, s.UpsertOwner(ctx, &domain.Owner{ID: "o1", Tier: domain.OwnerTierPro, MaxJobs: 50}))
	owner, err := s.GetOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerTierPro, owner.Tier)
	assert.Equal(t, 50, owner.MaxJobs)
}
