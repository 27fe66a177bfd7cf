package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aiinpocket/HomePage/internal/bootstrap"
	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/infra"
	"github.com/aiinpocket/HomePage/internal/jobs"
	"github.com/aiinpocket/HomePage/internal/worker"
)

// jobWorker feeds pending jobs from the shared store into a local pool.
type jobWorker struct {
	store    domain.JobRepository
	pool     *worker.Pool
	interval time.Duration
	batch    int
	logger   infra.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to open store")
	}
	defer rt.Close()
	if rt.Backend == bootstrap.BackendMemory {
		logger.Fatal().Msg("worker: memory store cannot be shared with the api process")
	}

	opts, err := rt.JobOptions(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure pipeline")
	}

	admission := worker.NewAdmission(cfg.AdmissionLimit)
	pool := worker.NewPool(jobs.NewRunner(opts), admission, logger, worker.WithPoolSize(cfg.WorkerConcurrency))

	// The service is only used for startup recovery; the poll loop does the queueing.
	report, err := jobs.NewService(opts, nil).Recover(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: recovery failed")
	}
	logger.Info().Int("failed", report.Failed).Msg("worker: recovered jobs")

	if err := pool.Start(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to start pool")
	}

	w := &jobWorker{
		store:    rt.Store,
		pool:     pool,
		interval: cfg.WorkerPollInterval,
		batch:    cfg.WorkerConcurrency * 2,
		logger:   logger,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("worker: pool did not drain before the deadline")
	}
	logger.Info().Msg("worker: stopped")
}

// Run polls until ctx is cancelled. Jobs are only fetched while the local
// queue is empty so a busy worker leaves the backlog to its peers.
func (w *jobWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.interval = 2 * time.Second
	}
	w.logger.Info().Dur("interval", w.interval).Msg("worker: started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if w.pool.Pending() == 0 {
			if err := w.poll(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("worker: failed to list pending jobs")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *jobWorker) poll(ctx context.Context) error {
	pending, err := w.store.ListByStatus(ctx, domain.JobStatusPending, w.batch)
	if err != nil {
		return err
	}
	for _, job := range pending {
		if err := w.pool.Enqueue(job.ID); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		w.logger.Debug().Int("count", len(pending)).Msg("worker: queued pending jobs")
	}
	return nil
}
