package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
)

// Driver applies lifecycle transitions. Every transition is a
// compare-and-set in the store, so concurrent callers cannot both win.
type Driver struct {
	credentials *CredentialManager
	announcer   *announcer
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// Dispatch moves a draft to pending.
func (d *Driver) Dispatch(ctx context.Context, repo domain.JobRepository, jobID string) (bool, error) {
	return repo.Transition(ctx, jobID, domain.JobStatusDraft, domain.JobStatusPending)
}

// Begin claims a pending job for generation. It reports false when the job
// was no longer pending.
func (d *Driver) Begin(ctx context.Context, repo domain.JobRepository, jobID string) (bool, error) {
	return repo.Transition(ctx, jobID, domain.JobStatusPending, domain.JobStatusGenerating)
}

// Complete records the document with a new result id and credential, then
// notifies the contact address with the plaintext credential.
func (d *Driver) Complete(ctx context.Context, repo domain.JobRepository, job *domain.Job, document string) error {
	plain, hash, err := d.credentials.Issue()
	if err != nil {
		return d.Fail(ctx, repo, job, err.Error())
	}

	wctx, cancel := detached(ctx)
	defer cancel()

	c := domain.Completion{
		ResultID:       uuid.NewString(),
		Document:       document,
		CredentialHash: hash,
		CompletedAt:    d.now().UTC(),
	}
	log := d.logger.With().Str("job_id", job.ID).Logger()
	ok, err := repo.Complete(wctx, job.ID, c)
	if err != nil {
		err = fmt.Errorf("record completion: %w", err)
		if ferr := d.Fail(ctx, repo, job, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("jobs: could not mark job failed after completion error")
		}
		return err
	}
	if !ok {
		log.Warn().Msg("jobs: job left generating before completion was recorded")
		return nil
	}

	job.Status = domain.JobStatusCompleted
	job.ResultID = c.ResultID
	job.ResultDocument = c.Document
	job.CredentialHash = c.CredentialHash
	job.CredentialConsumed = false
	job.ErrorDetail = ""
	job.CompletedAt = &c.CompletedAt

	d.metrics.IncrementCompleted()
	log.Info().Str("status", string(job.Status)).Str("result_id", c.ResultID).Msg("jobs: job completed")
	d.announcer.completed(wctx, job, plain)
	return nil
}

// Fail records the error detail of a generating job and notifies the contact
// address.
func (d *Driver) Fail(ctx context.Context, repo domain.JobRepository, job *domain.Job, detail string) error {
	wctx, cancel := detached(ctx)
	defer cancel()

	ok, err := repo.Fail(wctx, job.ID, detail)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	log := d.logger.With().Str("job_id", job.ID).Logger()
	if !ok {
		log.Warn().Msg("jobs: job left generating before failure was recorded")
		return nil
	}

	job.Status = domain.JobStatusFailed
	job.ErrorDetail = detail

	d.metrics.IncrementFailed()
	log.Warn().Str("status", string(job.Status)).Str("error_detail", detail).Msg("jobs: job failed")
	d.announcer.failed(wctx, job)
	return nil
}

// detached keeps terminal writes alive after the job context is cancelled.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
}
