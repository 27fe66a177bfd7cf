package domain

import "context"

// JobRepository defines persistence for job records. Every mutating method is
// serialized per record by the implementation.
type JobRepository interface {
	// Create inserts a job. When the job has an owner and limit is positive,
	// the owner's non-archived job count is checked and the insert happens
	// atomically with the check; a violation returns *QuotaExceededError.
	Create(ctx context.Context, job *Job, limit int) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// GetByResultID returns the non-archived job holding resultID.
	GetByResultID(ctx context.Context, resultID string) (*Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Job, error)
	ListByStatus(ctx context.Context, status JobStatus, limit int) ([]Job, error)
	// Transition moves a job between two non-terminal statuses. It returns
	// false when the job is not currently in from.
	Transition(ctx context.Context, jobID string, from, to JobStatus) (bool, error)
	// Complete moves a generating job to completed with its result and credential.
	Complete(ctx context.Context, jobID string, c Completion) (bool, error)
	// Fail moves a generating job to failed with the error detail.
	Fail(ctx context.Context, jobID, detail string) (bool, error)
	// ConsumeCredential locks the record, calls verify with the stored hash
	// and marks the credential consumed when verify returns nil.
	ConsumeCredential(ctx context.Context, jobID string, verify func(hash string) error) (*Job, error)
	// RotateCredential replaces the credential of a completed job and resets
	// the consumed flag.
	RotateCredential(ctx context.Context, jobID, hash string) error
	// ResetForRegeneration returns a terminal job to pending and clears its
	// result, error and credential fields.
	ResetForRegeneration(ctx context.Context, jobID string) error
	Archive(ctx context.Context, jobID string) error
}

// JobSession is a JobRepository bound to a dedicated connection.
type JobSession interface {
	JobRepository
	Close() error
}

// JobStore hands out isolated sessions for worker execution.
type JobStore interface {
	JobRepository
	Session(ctx context.Context) (JobSession, error)
}

// OwnerRepository stores per-owner quota overrides.
type OwnerRepository interface {
	GetOwner(ctx context.Context, ownerID string) (*Owner, error)
	UpsertOwner(ctx context.Context, owner *Owner) error
}
