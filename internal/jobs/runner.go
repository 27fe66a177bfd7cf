package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/providers/sitegen"
)

// Runner executes one job inside a worker slot. It implements worker.Handler.
type Runner struct {
	store     domain.JobStore
	assets    AssetStore
	generator sitegen.Generator
	driver    *Driver
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewRunner(opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		store:     opts.Store,
		assets:    opts.Assets,
		generator: opts.Generator,
		driver:    opts.driver(),
		timeout:   opts.GenerationTimeout,
		logger:    opts.Logger,
	}
}

// Handle runs the job through generation. Generation problems end in the
// failed state and are not returned; only store errors are.
func (r *Runner) Handle(ctx context.Context, jobID string) (err error) {
	log := r.logger.With().Str("job_id", jobID).Logger()

	session, err := r.store.Session(ctx)
	if err != nil {
		return fmt.Errorf("open store session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("jobs: close store session failed")
		}
	}()

	job, err := session.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("jobs: dispatched job does not exist")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != domain.JobStatusPending {
		log.Debug().Str("status", string(job.Status)).Msg("jobs: job is not pending, skipping")
		return nil
	}

	started, err := r.driver.Begin(ctx, session, jobID)
	if err != nil {
		return fmt.Errorf("begin job: %w", err)
	}
	if !started {
		log.Debug().Msg("jobs: job was claimed elsewhere")
		return nil
	}
	job.Status = domain.JobStatusGenerating
	log.Info().Str("generator", r.generator.Name()).Msg("jobs: generation started")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprint(rec)).Msg("jobs: generation panicked")
			err = r.driver.Fail(ctx, session, job, fmt.Sprintf("generation panicked: %v", rec))
		}
	}()

	document, genErr := r.generate(ctx, job)
	if genErr != nil {
		return r.driver.Fail(ctx, session, job, r.failureDetail(ctx, genErr))
	}
	return r.driver.Complete(ctx, session, job, document)
}

func (r *Runner) generate(ctx context.Context, job *domain.Job) (string, error) {
	spec, err := domain.DecodeInputSpec(job.InputJSON)
	if err != nil {
		return "", err
	}
	assets, err := loadAssets(ctx, r.assets, job.ID, spec.AssetKeys)
	if err != nil {
		return "", err
	}

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	document, err := r.generator.Generate(gctx, sitegen.Request{
		JobID:      job.ID,
		TemplateID: spec.TemplateID,
		Fields:     spec.Fields,
		AssetKeys:  spec.AssetKeys,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(document) == "" {
		return "", sitegen.ErrEmptyDocument
	}
	return EmbedAssets(document, assets), nil
}

func (r *Runner) failureDetail(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "generation interrupted: " + ctx.Err().Error()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("generation timed out after %s", r.timeout)
	default:
		return err.Error()
	}
}
