package jobs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/metrics"
	"github.com/aiinpocket/HomePage/internal/storage"
)

// SubmitRequest is a new generation request.
type SubmitRequest struct {
	Input       domain.InputSpec
	OwnerID     string            `validate:"omitempty,max=128"`
	ProjectName string            `validate:"omitempty,max=200"`
	Assets      map[string][]byte `validate:"omitempty,max=32,dive,min=1"`
	// Draft stores the job without dispatching it.
	Draft bool
}

// Submitter validates requests, enforces owner quotas and records jobs.
type Submitter struct {
	store          domain.JobRepository
	owners         domain.OwnerRepository
	assets         AssetStore
	queue          *dispatcher
	validate       *validator.Validate
	defaultMaxJobs int
	maxAssetBytes  int
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	now            func() time.Time
}

func newSubmitter(opts Options, queue *dispatcher) *Submitter {
	return &Submitter{
		store:          opts.Store,
		owners:         opts.Owners,
		assets:         opts.Assets,
		queue:          queue,
		validate:       validator.New(),
		defaultMaxJobs: opts.DefaultMaxJobs,
		maxAssetBytes:  opts.MaxAssetBytes,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		now:            opts.Now,
	}
}

// Submit records the job and hands it to the queue without waiting for
// execution. It returns the new job id.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	spec := domain.NormalizeInput(req.Input)
	keys, err := s.assetKeys(spec.AssetKeys, req.Assets)
	if err != nil {
		return "", err
	}
	spec.AssetKeys = keys

	raw, err := spec.Encode()
	if err != nil {
		return "", err
	}
	if err := domain.ValidateInput(raw); err != nil {
		return "", err
	}

	ownerID := strings.TrimSpace(req.OwnerID)
	limit, err := s.limitFor(ctx, ownerID)
	if err != nil {
		return "", err
	}

	status := domain.JobStatusPending
	if req.Draft {
		status = domain.JobStatusDraft
	}
	job := &domain.Job{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		ProjectName: projectName(req.ProjectName, spec),
		InputJSON:   raw,
		Status:      status,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.storeAssets(ctx, job.ID, req.Assets); err != nil {
		s.discardAssets(ctx, job.ID)
		return "", err
	}
	if err := s.store.Create(ctx, job, limit); err != nil {
		if len(req.Assets) > 0 {
			s.discardAssets(ctx, job.ID)
		}
		return "", err
	}

	s.metrics.IncrementSubmitted()
	s.logger.Info().
		Str("job_id", job.ID).
		Str("owner_id", ownerID).
		Str("status", string(status)).
		Int("assets", len(keys)).
		Msg("jobs: job submitted")

	if !req.Draft {
		s.queue.enqueue(job.ID)
	}
	return job.ID, nil
}

// assetKeys merges declared keys with uploaded ones. Every declared key must
// have an upload.
func (s *Submitter) assetKeys(declared []string, uploads map[string][]byte) ([]string, error) {
	set := make(map[string]struct{}, len(uploads))
	for key, data := range uploads {
		if len(data) > s.maxAssetBytes {
			return nil, fmt.Errorf("%w: asset %q exceeds %d bytes", domain.ErrInvalidInput, key, s.maxAssetBytes)
		}
		set[key] = struct{}{}
	}
	for _, key := range declared {
		if _, ok := uploads[key]; !ok {
			return nil, fmt.Errorf("%w: asset %q has no upload", domain.ErrInvalidInput, key)
		}
	}
	if len(uploads) > 0 && s.assets == nil {
		return nil, fmt.Errorf("%w: asset uploads are not enabled", domain.ErrInvalidInput)
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Submitter) limitFor(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, nil
	}
	if s.owners != nil {
		owner, err := s.owners.GetOwner(ctx, ownerID)
		switch {
		case err == nil:
			if owner.MaxJobs > 0 {
				return owner.MaxJobs, nil
			}
			if n := owner.Tier.MaxJobs(); n > 0 {
				return n, nil
			}
		case errors.Is(err, domain.ErrNotFound):
		default:
			return 0, fmt.Errorf("load owner quota: %w", err)
		}
	}
	return s.defaultMaxJobs, nil
}

func (s *Submitter) storeAssets(ctx context.Context, jobID string, uploads map[string][]byte) error {
	for key, data := range uploads {
		if _, err := s.assets.Write(ctx, storage.AssetKey(jobID, key), data); err != nil {
			return fmt.Errorf("store asset %q: %w", key, err)
		}
	}
	return nil
}

func (s *Submitter) discardAssets(ctx context.Context, jobID string) {
	if s.assets == nil {
		return
	}
	if err := s.assets.Delete(context.WithoutCancel(ctx), path.Join("jobs", jobID)); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: discard assets failed")
	}
}

func projectName(explicit string, spec domain.InputSpec) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	if name := spec.Field("company_name"); name != "" {
		return name
	}
	return spec.TemplateID
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, ve := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", ve.Namespace(), ve.Tag()))
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}

// dispatcher enqueues jobs without blocking. Without a queue the job stays
// pending for an external worker.
type dispatcher struct {
	queue   Enqueuer
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func (d *dispatcher) enqueue(jobID string) {
	if d.queue == nil {
		d.logger.Debug().Str("job_id", jobID).Msg("jobs: no in-process queue, job left for external worker")
		return
	}
	if err := d.queue.Enqueue(jobID); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: enqueue failed, job stays pending")
		return
	}
	d.metrics.IncrementDispatched()
}
