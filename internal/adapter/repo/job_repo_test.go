package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/infra"
	"github.com/aiinpocket/HomePage/internal/sqlinline"
)

type funcRow func(dest ...any) error

func (f funcRow) Scan(dest ...any) error { return f(dest...) }

const jobID = "6f1c2b8e-3d4a-4c5b-9e7f-0a1b2c3d4e5f"

type stubExec struct {
	rows     map[string]pgx.Row
	affected map[string]int64
	execs    []string
	args     map[string][]any
	inTx     int
}

func newStubExec() *stubExec {
	return &stubExec{rows: map[string]pgx.Row{}, affected: map[string]int64{}, args: map[string][]any{}}
}

func (s *stubExec) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, query)
	s.args[query] = args
	if n, ok := s.affected[query]; ok {
		if n == 0 {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubExec) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if row, ok := s.rows[query]; ok {
		return row
	}
	return funcRow(func(dest ...any) error { return pgx.ErrNoRows })
}

func (s *stubExec) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubExec) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	s.inTx++
	return fn(s)
}

func intRow(v int) pgx.Row {
	return funcRow(func(dest ...any) error {
		*(dest[0].(*int)) = v
		return nil
	})
}

func statusRow(v string) pgx.Row {
	return funcRow(func(dest ...any) error {
		*(dest[0].(*string)) = v
		return nil
	})
}

func jobRow(j domain.Job) pgx.Row {
	return funcRow(func(dest ...any) error {
		*(dest[0].(*string)) = j.ID
		*(dest[1].(*string)) = j.OwnerID
		*(dest[2].(*string)) = j.ProjectName
		*(dest[3].(*[]byte)) = j.InputJSON
		*(dest[4].(*string)) = string(j.Status)
		*(dest[5].(*string)) = j.ResultID
		*(dest[6].(*string)) = j.ResultDocument
		*(dest[7].(*string)) = j.ErrorDetail
		*(dest[8].(*string)) = j.CredentialHash
		*(dest[9].(*bool)) = j.CredentialConsumed
		*(dest[10].(*bool)) = j.IsArchived
		*(dest[11].(*time.Time)) = j.CreatedAt
		*(dest[12].(*time.Time)) = j.UpdatedAt
		*(dest[13].(**time.Time)) = j.CompletedAt
		return nil
	})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func TestCreateRejectsOverQuota(t *testing.T) {
	exec := newStubExec()
	exec.rows[sqlinline.QCountActiveJobsByOwner] = intRow(5)
	repo := NewJobRepository(exec)

	err := repo.Create(context.Background(), &domain.Job{ID: jobID, OwnerID: "owner-1", Status: domain.JobStatusPending}, 5)

	var qe *domain.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 5, qe.Limit)
	assert.True(t, contains(exec.execs, sqlinline.QLockOwnerJobs))
	assert.False(t, contains(exec.execs, sqlinline.QInsertJob))
}

func TestCreateUnderQuotaInsertsInTx(t *testing.T) {
	exec := newStubExec()
	exec.rows[sqlinline.QCountActiveJobsByOwner] = intRow(4)
	repo := NewJobRepository(exec)

	require.NoError(t, repo.Create(context.Background(), &domain.Job{ID: jobID, OwnerID: "owner-1", Status: domain.JobStatusPending}, 5))
	assert.Equal(t, 1, exec.inTx)
	assert.True(t, contains(exec.execs, sqlinline.QInsertJob))
}

func TestCreateAnonymousSkipsQuota(t *testing.T) {
	exec := newStubExec()
	repo := NewJobRepository(exec)

	require.NoError(t, repo.Create(context.Background(), &domain.Job{ID: jobID, Status: domain.JobStatusPending}, 5))
	assert.Equal(t, 0, exec.inTx)
	assert.Equal(t, []string{sqlinline.QInsertJob}, exec.execs)
}

func TestTransitionGuard(t *testing.T) {
	exec := newStubExec()
	exec.affected[sqlinline.QTransitionJobStatus] = 0
	exec.rows[sqlinline.QSelectJobStatus] = statusRow("generating")
	repo := NewJobRepository(exec)

	ok, err := repo.Transition(context.Background(), jobID, domain.JobStatusPending, domain.JobStatusGenerating)
	require.NoError(t, err)
	assert.False(t, ok)

	delete(exec.rows, sqlinline.QSelectJobStatus)
	_, err = repo.Transition(context.Background(), jobID, domain.JobStatusPending, domain.JobStatusGenerating)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.Transition(context.Background(), jobID, domain.JobStatusGenerating, domain.JobStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestConsumeCredential(t *testing.T) {
	completedAt := time.Now()
	base := domain.Job{
		ID:             jobID,
		Status:         domain.JobStatusCompleted,
		ResultDocument: "<html></html>",
		CredentialHash: "hash",
		CompletedAt:    &completedAt,
	}
	okVerify := func(string) error { return nil }

	t.Run("consumes", func(t *testing.T) {
		exec := newStubExec()
		exec.rows[sqlinline.QSelectJobByIDForUpdate] = jobRow(base)
		job, err := NewJobRepository(exec).ConsumeCredential(context.Background(), jobID, okVerify)
		require.NoError(t, err)
		assert.True(t, job.CredentialConsumed)
		assert.Equal(t, &completedAt, job.CompletedAt)
		assert.True(t, contains(exec.execs, sqlinline.QConsumeJobCredential))
	})

	t.Run("already consumed", func(t *testing.T) {
		consumed := base
		consumed.CredentialConsumed = true
		exec := newStubExec()
		exec.rows[sqlinline.QSelectJobByIDForUpdate] = jobRow(consumed)
		_, err := NewJobRepository(exec).ConsumeCredential(context.Background(), jobID, okVerify)
		assert.ErrorIs(t, err, domain.ErrCredentialConsumed)
		assert.Empty(t, exec.execs)
	})

	t.Run("mismatch", func(t *testing.T) {
		exec := newStubExec()
		exec.rows[sqlinline.QSelectJobByIDForUpdate] = jobRow(base)
		_, err := NewJobRepository(exec).ConsumeCredential(context.Background(), jobID, func(string) error {
			return domain.ErrCredentialMismatch
		})
		assert.ErrorIs(t, err, domain.ErrCredentialMismatch)
		assert.Empty(t, exec.execs)
	})

	t.Run("not completed", func(t *testing.T) {
		failed := domain.Job{ID: jobID, Status: domain.JobStatusFailed, ErrorDetail: "timeout"}
		exec := newStubExec()
		exec.rows[sqlinline.QSelectJobByIDForUpdate] = jobRow(failed)
		_, err := NewJobRepository(exec).ConsumeCredential(context.Background(), jobID, okVerify)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRotateCredentialRequiresCompleted(t *testing.T) {
	exec := newStubExec()
	exec.affected[sqlinline.QRotateJobCredential] = 0
	exec.rows[sqlinline.QSelectJobStatus] = statusRow("failed")

	err := NewJobRepository(exec).RotateCredential(context.Background(), jobID, "hash")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestResetForRegeneration(t *testing.T) {
	exec := newStubExec()
	repo := NewJobRepository(exec)
	require.NoError(t, repo.ResetForRegeneration(context.Background(), jobID))

	exec.affected[sqlinline.QResetJobForRegeneration] = 0
	exec.rows[sqlinline.QSelectJobStatus] = statusRow("generating")
	assert.ErrorIs(t, repo.ResetForRegeneration(context.Background(), jobID), domain.ErrInvalidTransition)
}

func TestGetByIDNotFound(t *testing.T) {
	_, err := NewJobRepository(newStubExec()).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateStampsCreatedAt(t *testing.T) {
	exec := newStubExec()
	repo := NewJobRepository(exec)
	stamp := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return stamp }

	job := &domain.Job{ID: jobID, Status: domain.JobStatusPending}
	require.NoError(t, repo.Create(context.Background(), job, 0))
	args := exec.args[sqlinline.QInsertJob]
	require.Len(t, args, 6)
	assert.Equal(t, stamp, args[5])
	assert.Equal(t, stamp, job.CreatedAt)

	given := time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(context.Background(), &domain.Job{ID: jobID, Status: domain.JobStatusPending, CreatedAt: given}, 0))
	assert.Equal(t, given, exec.args[sqlinline.QInsertJob][5])
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	exec := newStubExec()
	repo := NewJobRepository(exec)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetByResultID(ctx, "../etc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Transition(ctx, "x", domain.JobStatusDraft, domain.JobStatusPending)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Complete(ctx, "x", domain.Completion{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Fail(ctx, "x", "boom")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.ConsumeCredential(ctx, "x", func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.RotateCredential(ctx, "x", "hash"), domain.ErrNotFound)
	assert.ErrorIs(t, repo.ResetForRegeneration(ctx, "x"), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Archive(ctx, "x"), domain.ErrNotFound)
	assert.Empty(t, exec.execs)
	assert.Zero(t, exec.inTx)
}

func TestGetByResultID(t *testing.T) {
	exec := newStubExec()
	resultID := "0b9a8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"
	exec.rows[sqlinline.QSelectJobByResultID] = jobRow(domain.Job{ID: jobID, Status: domain.JobStatusCompleted, ResultID: resultID})

	job, err := NewJobRepository(exec).GetByResultID(context.Background(), resultID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)

	delete(exec.rows, sqlinline.QSelectJobByResultID)
	_, err = NewJobRepository(exec).GetByResultID(context.Background(), resultID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
