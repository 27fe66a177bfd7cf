package jobs

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
)

// GenericFailure is the error detail shown to callers other than the owner.
const GenericFailure = "generation failed"

// RecoveryDetail is recorded on jobs found generating at startup.
const RecoveryDetail = "interrupted before completion"

// StatusView is the externally visible state of a job.
type StatusView struct {
	JobID              string
	ProjectName        string
	Status             domain.JobStatus
	ErrorDetail        string
	ResultID           string
	CredentialIssued   bool
	CredentialConsumed bool
	IsArchived         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
}

// Download is a packaged site ready to stream to the caller.
type Download struct {
	JobID    string
	ResultID string
	Filename string
	Data     []byte
}

// RecoveryReport summarizes Recover.
type RecoveryReport struct {
	Requeued int
	Failed   int
}

// Service is the job API used by transports.
type Service struct {
	store       domain.JobStore
	assets      AssetStore
	packager    Packager
	submitter   *Submitter
	credentials *CredentialManager
	driver      *Driver
	queue       *dispatcher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewService builds the job API. queue may be nil when jobs are executed by a
// separate worker process.
func NewService(opts Options, queue Enqueuer) *Service {
	opts = opts.withDefaults()
	d := &dispatcher{queue: queue, metrics: opts.Metrics, logger: opts.Logger}
	return &Service{
		store:       opts.Store,
		assets:      opts.Assets,
		packager:    opts.Packager,
		submitter:   newSubmitter(opts, d),
		credentials: opts.credentialManager(),
		driver:      opts.driver(),
		queue:       d,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// Metrics returns the counters shared by the pipeline.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Submit records a job and returns its id immediately.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	return s.submitter.Submit(ctx, req)
}

// Status returns the job state. The raw error detail is only shown to the owner.
func (s *Service) Status(ctx context.Context, jobID, requester string) (*StatusView, error) {
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	view := newStatusView(job, isOwner(job, requester))
	return &view, nil
}

// ListOwned returns the owner's non-archived jobs, newest first.
func (s *Service) ListOwned(ctx context.Context, ownerID string) ([]StatusView, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", domain.ErrInvalidInput)
	}
	jobs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]StatusView, 0, len(jobs))
	for i := range jobs {
		out = append(out, newStatusView(&jobs[i], true))
	}
	return out, nil
}

// Download redeems the credential and packages the site. A consumed
// credential stays consumed even if packaging fails afterwards.
func (s *Service) Download(ctx context.Context, jobID, password string) (*Download, error) {
	job, err := s.credentials.ValidateAndConsume(ctx, jobID, password)
	if err != nil {
		return nil, err
	}
	log := s.logger.With().Str("job_id", jobID).Logger()

	spec, err := domain.DecodeInputSpec(job.InputJSON)
	if err != nil {
		return nil, err
	}
	assets, err := loadAssets(ctx, s.assets, job.ID, spec.AssetKeys)
	if err != nil {
		log.Error().Err(err).Msg("jobs: load assets for download failed")
		return nil, err
	}
	data, err := s.packager.Package(job.ResultDocument, assets)
	if err != nil {
		log.Error().Err(err).Msg("jobs: packaging failed")
		return nil, fmt.Errorf("package site: %w", err)
	}

	s.metrics.IncrementDownloads()
	log.Info().Int("bytes", len(data)).Msg("jobs: download served")
	return &Download{
		JobID:    job.ID,
		ResultID: job.ResultID,
		Filename: archiveName(job),
		Data:     data,
	}, nil
}

// RegenerateCredential issues a fresh credential for a completed job and
// returns it. The previous credential stops working.
func (s *Service) RegenerateCredential(ctx context.Context, jobID, requester string) (string, error) {
	if _, err := s.authorized(ctx, jobID, requester); err != nil {
		return "", err
	}
	plain, err := s.credentials.Regenerate(ctx, jobID)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("job_id", jobID).Msg("jobs: credential regenerated")
	return plain, nil
}

// RegenerateJob sends a terminal job back to pending under the same id. The
// previous result and credential are discarded.
func (s *Service) RegenerateJob(ctx context.Context, jobID, requester string) error {
	if _, err := s.authorized(ctx, jobID, requester); err != nil {
		return err
	}
	if err := s.store.ResetForRegeneration(ctx, jobID); err != nil {
		return err
	}
	s.metrics.IncrementRegenerated()
	s.logger.Info().Str("job_id", jobID).Msg("jobs: job reset for regeneration")
	s.queue.enqueue(jobID)
	return nil
}

// Dispatch submits a draft for generation.
func (s *Service) Dispatch(ctx context.Context, jobID, requester string) error {
	job, err := s.authorized(ctx, jobID, requester)
	if err != nil {
		return err
	}
	ok, err := s.driver.Dispatch(ctx, s.store, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job is %s, not draft", domain.ErrInvalidTransition, job.Status)
	}
	s.queue.enqueue(jobID)
	return nil
}

// Preview returns the rendered document of a completed site. The result id
// is the only capability required.
func (s *Service) Preview(ctx context.Context, resultID string) (string, error) {
	job, err := s.store.GetByResultID(ctx, strings.TrimSpace(resultID))
	if err != nil {
		return "", err
	}
	if job.Status != domain.JobStatusCompleted || job.ResultDocument == "" {
		return "", domain.ErrNotFound
	}
	s.metrics.IncrementPreviews()
	return job.ResultDocument, nil
}

// Archive hides a job from listings and releases its quota slot. Only the
// owner may archive, and never while the job is generating.
func (s *Service) Archive(ctx context.Context, jobID, requester string) error {
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.OwnerID == "" || !isOwner(job, requester) {
		return domain.ErrForbidden
	}
	if job.Status == domain.JobStatusGenerating {
		return fmt.Errorf("%w: job is generating", domain.ErrInvalidTransition)
	}
	if err := s.store.Archive(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info().Str("job_id", jobID).Str("owner_id", job.OwnerID).Msg("jobs: job archived")
	return nil
}

// Recover fails jobs left generating by a previous process and re-enqueues
// pending ones. It assumes no other process is executing jobs.
func (s *Service) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	orphans, err := s.store.ListByStatus(ctx, domain.JobStatusGenerating, 0)
	if err != nil {
		return report, fmt.Errorf("list generating jobs: %w", err)
	}
	for i := range orphans {
		if err := s.driver.Fail(ctx, s.store, &orphans[i], RecoveryDetail); err != nil {
			return report, err
		}
		report.Failed++
	}

	if s.queue.queue != nil {
		pending, err := s.store.ListByStatus(ctx, domain.JobStatusPending, 0)
		if err != nil {
			return report, fmt.Errorf("list pending jobs: %w", err)
		}
		for _, job := range pending {
			s.queue.enqueue(job.ID)
			report.Requeued++
		}
	}

	s.logger.Info().Int("failed", report.Failed).Int("requeued", report.Requeued).Msg("jobs: recovery finished")
	return report, nil
}

// authorized loads the job and rejects callers other than its owner.
// Anonymous jobs are open to anyone holding the id.
func (s *Service) authorized(ctx context.Context, jobID, requester string) (*domain.Job, error) {
	job, err := s.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != "" && !isOwner(job, requester) {
		return nil, domain.ErrForbidden
	}
	return job, nil
}

func isOwner(job *domain.Job, requester string) bool {
	return job.OwnerID != "" && job.OwnerID == strings.TrimSpace(requester)
}

func newStatusView(job *domain.Job, owner bool) StatusView {
	v := StatusView{
		JobID:              job.ID,
		ProjectName:        job.ProjectName,
		Status:             job.Status,
		ResultID:           job.ResultID,
		CredentialIssued:   job.HasCredential(),
		CredentialConsumed: job.CredentialConsumed,
		IsArchived:         job.IsArchived,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
		CompletedAt:        job.CompletedAt,
	}
	if job.Status == domain.JobStatusFailed {
		v.ErrorDetail = GenericFailure
		if owner && job.ErrorDetail != "" {
			v.ErrorDetail = job.ErrorDetail
		}
	}
	return v
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func archiveName(job *domain.Job) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(job.ProjectName, "-"), "-.")
	if name == "" {
		name = "site-" + job.ResultID
	}
	return name + ".zip"
}

// IsClientError reports whether err is caused by the request rather than the
// system.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrForbidden) ||
		errors.Is(err, domain.ErrQuotaExceeded) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		isCredentialError(err)
}
