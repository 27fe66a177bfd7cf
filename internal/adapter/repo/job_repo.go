package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/infra"
	"github.com/aiinpocket/HomePage/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	sql infra.TxExecutor
	now func() time.Time
}

// NewJobRepository creates a job repository over the given executor.
func NewJobRepository(sql infra.TxExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql, now: time.Now}
}

// validID reports whether id can be cast to the uuid column type. Anything
// else cannot match a row.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// Create inserts a new job. Owner quotas are checked under a transaction
// scoped advisory lock keyed by owner so concurrent submissions serialize.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job, limit int) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now().UTC()
	}
	if job.OwnerID == "" || limit <= 0 {
		return insertJob(ctx, r.sql, job)
	}
	return r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QLockOwnerJobs, job.OwnerID); err != nil {
			return fmt.Errorf("lock owner jobs: %w", err)
		}
		var count int
		if err := tx.QueryRow(ctx, sqlinline.QCountActiveJobsByOwner, job.OwnerID).Scan(&count); err != nil {
			return fmt.Errorf("count owner jobs: %w", err)
		}
		if count >= limit {
			return &domain.QuotaExceededError{Limit: limit}
		}
		return insertJob(ctx, tx, job)
	})
}

func insertJob(ctx context.Context, sql infra.SQLExecutor, job *domain.Job) error {
	_, err := sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		job.OwnerID,
		job.ProjectName,
		job.InputJSON,
		string(job.Status),
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID))
}

// GetByResultID fetches the non-archived job that produced resultID.
func (r *JobRepositoryPG) GetByResultID(ctx context.Context, resultID string) (*domain.Job, error) {
	if !validID(resultID) {
		return nil, domain.ErrNotFound
	}
	return scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByResultID, resultID))
}

// ListByOwner returns the owner's non-archived jobs, newest first.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// ListByStatus returns up to limit non-archived jobs in status, oldest first.
// A non-positive limit returns every match.
func (r *JobRepositoryPG) ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListJobsByStatus, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

// Transition performs a compare-and-set on the status column.
func (r *JobRepositoryPG) Transition(ctx context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	if !domain.PlainTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	if !validID(jobID) {
		return false, domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionJobStatus, jobID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, r.ensureExists(ctx, jobID)
	}
	return true, nil
}

// Complete stores the result and credential in the same statement that
// leaves generating, so a completed row is always downloadable.
func (r *JobRepositoryPG) Complete(ctx context.Context, jobID string, c domain.Completion) (bool, error) {
	if !validID(jobID) {
		return false, domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob, jobID, c.ResultID, c.Document, c.CredentialHash, c.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, r.ensureExists(ctx, jobID)
	}
	return true, nil
}

// Fail moves a generating job to failed.
func (r *JobRepositoryPG) Fail(ctx context.Context, jobID, detail string) (bool, error) {
	if !validID(jobID) {
		return false, domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFailJob, jobID, detail)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, r.ensureExists(ctx, jobID)
	}
	return true, nil
}

// ConsumeCredential checks and consumes the credential under a row lock.
func (r *JobRepositoryPG) ConsumeCredential(ctx context.Context, jobID string, verify func(hash string) error) (*domain.Job, error) {
	if !validID(jobID) {
		return nil, domain.ErrNotFound
	}
	var consumed *domain.Job
	err := r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		job, err := scanJob(tx.QueryRow(ctx, sqlinline.QSelectJobByIDForUpdate, jobID))
		if err != nil {
			return err
		}
		if err := checkCredential(job, verify); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sqlinline.QConsumeJobCredential, jobID); err != nil {
			return fmt.Errorf("consume credential: %w", err)
		}
		job.CredentialConsumed = true
		consumed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// RotateCredential replaces the credential of a completed job.
func (r *JobRepositoryPG) RotateCredential(ctx context.Context, jobID, hash string) error {
	if !validID(jobID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QRotateJobCredential, jobID, hash)
	if err != nil {
		return fmt.Errorf("rotate credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := r.ensureExists(ctx, jobID); err != nil {
			return err
		}
		return fmt.Errorf("%w: job is not completed", domain.ErrInvalidTransition)
	}
	return nil
}

// ResetForRegeneration returns a terminal job to pending.
func (r *JobRepositoryPG) ResetForRegeneration(ctx context.Context, jobID string) error {
	if !validID(jobID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QResetJobForRegeneration, jobID)
	if err != nil {
		return fmt.Errorf("reset job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if err := r.ensureExists(ctx, jobID); err != nil {
			return err
		}
		return fmt.Errorf("%w: job is not in a terminal state", domain.ErrInvalidTransition)
	}
	return nil
}

// Archive soft deletes a job.
func (r *JobRepositoryPG) Archive(ctx context.Context, jobID string) error {
	if !validID(jobID) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QArchiveJob, jobID)
	if err != nil {
		return fmt.Errorf("archive job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryPG) ensureExists(ctx context.Context, jobID string) error {
	var status string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectJobStatus, jobID).Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

// checkCredential applies the credential rules shared by every store.
func checkCredential(job *domain.Job, verify func(hash string) error) error {
	if !job.HasCredential() {
		return domain.ErrCredentialNotFound
	}
	if job.CredentialConsumed {
		return domain.ErrCredentialConsumed
	}
	return verify(job.CredentialHash)
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.ProjectName,
		&job.InputJSON,
		&status,
		&job.ResultID,
		&job.ResultDocument,
		&job.ErrorDetail,
		&job.CredentialHash,
		&job.CredentialConsumed,
		&job.IsArchived,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
