package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/aiinpocket/HomePage/internal/bootstrap"
	"github.com/aiinpocket/HomePage/internal/http/handlers"
	"github.com/aiinpocket/HomePage/internal/http/httpapi"
	"github.com/aiinpocket/HomePage/internal/infra"
	"github.com/aiinpocket/HomePage/internal/jobs"
	"github.com/aiinpocket/HomePage/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to open store")
	}
	defer rt.Close()
	if err := rt.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: migration failed")
	}

	opts, err := rt.JobOptions(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure pipeline")
	}

	var (
		pool      *worker.Pool
		admission *worker.Admission
		svc       *jobs.Service
	)
	if cfg.WorkerMode == infra.WorkerModeExternal {
		svc = jobs.NewService(opts, nil)
		logger.Info().Msg("api: generation delegated to external workers")
	} else {
		admission = worker.NewAdmission(cfg.AdmissionLimit)
		pool = worker.NewPool(jobs.NewRunner(opts), admission, logger, worker.WithPoolSize(cfg.WorkerConcurrency))
		svc = jobs.NewService(opts, pool)

		report, err := svc.Recover(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: recovery failed")
		}
		logger.Info().Int("requeued", report.Requeued).Int("failed", report.Failed).Msg("api: recovered jobs")

		if err := pool.Start(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("api: failed to start worker pool")
		}
	}

	app := handlers.NewApp(svc, logger)
	if pool != nil {
		app.Admission = admission
		app.Queue = pool
	}
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if pool != nil {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Int("pending", pool.Pending()).Msg("worker pool did not drain before the deadline")
		}
	}
	logger.Info().Msg("server stopped")
}
