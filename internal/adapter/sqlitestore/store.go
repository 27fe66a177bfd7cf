// Package sqlitestore implements the job store on SQLite for single-node deployments.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aiinpocket/HomePage/internal/domain"
)

// conn is satisfied by *sql.DB and *sql.Conn.
type conn interface {
	execer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// execer is additionally satisfied by *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements domain.JobStore and domain.OwnerRepository using SQLite.
// Transactions begin IMMEDIATE so read-check-write sequences hold the write lock.
type Store struct {
	*repository
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{repository: &repository{db: db, now: time.Now}, db: db}, nil
}

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, qSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Session pins a single connection for the lifetime of the session.
func (s *Store) Session(ctx context.Context) (domain.JobSession, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &session{repository: &repository{db: c, now: s.now}, conn: c}, nil
}

type session struct {
	*repository
	conn *sql.Conn
}

func (s *session) Close() error {
	return s.conn.Close()
}

type repository struct {
	db  conn
	now func() time.Time
}

func (r *repository) inTx(ctx context.Context, fn func(execer) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *repository) Create(ctx context.Context, job *domain.Job, limit int) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = r.now()
	}
	job.UpdatedAt = job.CreatedAt
	insert := func(ex execer) error {
		_, err := ex.ExecContext(ctx, qInsertJob,
			job.ID,
			job.OwnerID,
			job.ProjectName,
			string(job.InputJSON),
			string(job.Status),
			job.CreatedAt.UnixNano(),
			job.UpdatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		return nil
	}
	if job.OwnerID == "" || limit <= 0 {
		return insert(r.db)
	}
	return r.inTx(ctx, func(tx execer) error {
		var count int
		if err := tx.QueryRowContext(ctx, qCountActiveJobsByOwner, job.OwnerID).Scan(&count); err != nil {
			return fmt.Errorf("count owner jobs: %w", err)
		}
		if count >= limit {
			return &domain.QuotaExceededError{Limit: limit}
		}
		return insert(tx)
	})
}

func (r *repository) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	return scanJob(r.db.QueryRowContext(ctx, qSelectJobByID, jobID))
}

func (r *repository) GetByResultID(ctx context.Context, resultID string) (*domain.Job, error) {
	return scanJob(r.db.QueryRowContext(ctx, qSelectJobByResultID, resultID))
}

func (r *repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, qListJobsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *repository) ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, qListJobsByStatus, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *repository) Transition(ctx context.Context, jobID string, from, to domain.JobStatus) (bool, error) {
	if !domain.PlainTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	res, err := r.db.ExecContext(ctx, qTransitionJobStatus, string(to), r.now().UnixNano(), jobID, string(from))
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	return r.applied(ctx, res, jobID)
}

func (r *repository) Complete(ctx context.Context, jobID string, c domain.Completion) (bool, error) {
	res, err := r.db.ExecContext(ctx, qCompleteJob,
		c.ResultID, c.Document, c.CredentialHash, c.CompletedAt.UnixNano(), r.now().UnixNano(), jobID)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	return r.applied(ctx, res, jobID)
}

func (r *repository) Fail(ctx context.Context, jobID, detail string) (bool, error) {
	res, err := r.db.ExecContext(ctx, qFailJob, detail, r.now().UnixNano(), jobID)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	return r.applied(ctx, res, jobID)
}

func (r *repository) ConsumeCredential(ctx context.Context, jobID string, verify func(hash string) error) (*domain.Job, error) {
	var consumed *domain.Job
	err := r.inTx(ctx, func(tx execer) error {
		job, err := scanJob(tx.QueryRowContext(ctx, qSelectJobByID, jobID))
		if err != nil {
			return err
		}
		if !job.HasCredential() {
			return domain.ErrCredentialNotFound
		}
		if job.CredentialConsumed {
			return domain.ErrCredentialConsumed
		}
		if err := verify(job.CredentialHash); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, qConsumeJobCredential, r.now().UnixNano(), jobID)
		if err != nil {
			return fmt.Errorf("consume credential: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrCredentialConsumed
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

func (r *repository) RotateCredential(ctx context.Context, jobID, hash string) error {
	res, err := r.db.ExecContext(ctx, qRotateJobCredential, hash, r.now().UnixNano(), jobID)
	if err != nil {
		return fmt.Errorf("rotate credential: %w", err)
	}
	ok, err := r.applied(ctx, res, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job is not completed", domain.ErrInvalidTransition)
	}
	return nil
}

func (r *repository) ResetForRegeneration(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, qResetJobForRegeneration, r.now().UnixNano(), jobID)
	if err != nil {
		return fmt.Errorf("reset job: %w", err)
	}
	ok, err := r.applied(ctx, res, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job is not in a terminal state", domain.ErrInvalidTransition)
	}
	return nil
}

func (r *repository) Archive(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, qArchiveJob, r.now().UnixNano(), jobID)
	if err != nil {
		return fmt.Errorf("archive job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repository) GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error) {
	var (
		owner   domain.Owner
		tier    string
		updated int64
	)
	err := r.db.QueryRowContext(ctx, qSelectOwner, ownerID).Scan(&owner.ID, &tier, &owner.MaxJobs, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	owner.Tier = domain.OwnerTier(tier)
	owner.UpdatedAt = time.Unix(0, updated)
	return &owner, nil
}

func (r *repository) UpsertOwner(ctx context.Context, owner *domain.Owner) error {
	if _, err := r.db.ExecContext(ctx, qUpsertOwner, owner.ID, string(owner.Tier), owner.MaxJobs, r.now().UnixNano()); err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

// applied reports whether a conditional update matched, distinguishing a
// missing row from a status mismatch.
func (r *repository) applied(ctx context.Context, res sql.Result, jobID string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var status string
	if err := r.db.QueryRowContext(ctx, qSelectJobStatus, jobID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, err
	}
	return false, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		job                domain.Job
		input, status      string
		consumed, archived int
		created, updated   int64
		completed          sql.NullInt64
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.ProjectName,
		&input,
		&status,
		&job.ResultID,
		&job.ResultDocument,
		&job.ErrorDetail,
		&job.CredentialHash,
		&consumed,
		&archived,
		&created,
		&updated,
		&completed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	job.InputJSON = []byte(input)
	job.Status = domain.JobStatus(status)
	job.CredentialConsumed = consumed != 0
	job.IsArchived = archived != 0
	job.CreatedAt = time.Unix(0, created)
	job.UpdatedAt = time.Unix(0, updated)
	if completed.Valid {
		t := time.Unix(0, completed.Int64)
		job.CompletedAt = &t
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
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

var (
	_ domain.JobStore        = (*Store)(nil)
	_ domain.OwnerRepository = (*Store)(nil)
)
