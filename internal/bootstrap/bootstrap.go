// Package bootstrap assembles the job pipeline from configuration. It is
// shared by the api, worker and jobctl commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aiinpocket/HomePage/internal/adapter/memstore"
	"github.com/aiinpocket/HomePage/internal/adapter/repo"
	"github.com/aiinpocket/HomePage/internal/adapter/sqlitestore"
	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/infra"
	"github.com/aiinpocket/HomePage/internal/infra/credentials"
	"github.com/aiinpocket/HomePage/internal/jobs"
	"github.com/aiinpocket/HomePage/internal/metrics"
	"github.com/aiinpocket/HomePage/internal/providers/notify"
	"github.com/aiinpocket/HomePage/internal/providers/sitegen"
	"github.com/aiinpocket/HomePage/internal/sqlinline"
	"github.com/aiinpocket/HomePage/internal/storage"
)

// Backend names the store selected by DATABASE_URL.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
	BackendMemory   Backend = "memory"
)

// ParseDatabaseURL maps a DATABASE_URL onto a backend and the value handed to
// its driver. postgres:// URLs are passed through unchanged.
func ParseDatabaseURL(raw string) (Backend, string, error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		if path, found := strings.CutPrefix(raw, "sqlite:"); found && path != "" {
			return BackendSQLite, path, nil
		}
		return "", "", fmt.Errorf("unsupported DATABASE_URL %q", raw)
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return BackendPostgres, raw, nil
	case "sqlite", "sqlite3", "file":
		if rest == "" {
			return "", "", errors.New("sqlite DATABASE_URL needs a path")
		}
		return BackendSQLite, rest, nil
	case "memory", "mem":
		return BackendMemory, "", nil
	}
	return "", "", fmt.Errorf("unsupported DATABASE_URL scheme %q", scheme)
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// Runtime owns the store, file storage and counters of one process.
type Runtime struct {
	Config  *infra.Config
	Logger  zerolog.Logger
	Backend Backend
	Store   domain.JobStore
	Owners  domain.OwnerRepository
	// Keys is nil outside Postgres; provider keys then come from the environment only.
	Keys    *credentials.Store
	Assets  *storage.FileStore
	Metrics *metrics.Metrics

	migrate migrator
	closers []func()
}

// Open connects the store named by cfg.DatabaseURL and prepares file storage.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Runtime, error) {
	backend, dsn, err := ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Logger: logger, Backend: backend, Metrics: metrics.NewMetrics()}

	switch backend {
	case BackendPostgres:
		poolCfg := *cfg
		poolCfg.DatabaseURL = dsn
		pool, err := infra.NewDBPool(ctx, &poolCfg)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		runner := infra.NewSQLRunner(pool, logger)
		rt.Store = repo.NewJobStore(runner)
		rt.Owners = repo.NewOwnerRepository(runner)
		rt.Keys = credentials.NewStore(runner)
		rt.migrate = pgMigrator{runner: runner}
	case BackendSQLite:
		store, err := sqlitestore.Open(dsn)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		rt.Store, rt.Owners, rt.migrate = store, store, store
	case BackendMemory:
		store := memstore.New()
		rt.Store, rt.Owners, rt.migrate = store, store, store
	}

	assets, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Assets = assets
	logger.Info().Str("backend", string(backend)).Str("storage", assets.BasePath()).Msg("bootstrap: store ready")
	return rt, nil
}

// Migrate creates the schema when missing.
func (r *Runtime) Migrate(ctx context.Context) error {
	if r.migrate == nil {
		return nil
	}
	return r.migrate.Migrate(ctx)
}

// Close releases every resource opened by Open and JobOptions, newest first.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// JobOptions wires the generator and notifier selected by configuration.
func (r *Runtime) JobOptions(ctx context.Context) (jobs.Options, error) {
	generator, err := r.generator(ctx)
	if err != nil {
		return jobs.Options{}, err
	}
	cfg := r.Config
	return jobs.Options{
		Store:              r.Store,
		Owners:             r.Owners,
		Assets:             r.Assets,
		Generator:          generator,
		Notifier:           r.notifier(),
		Metrics:            r.Metrics,
		Logger:             r.Logger,
		SiteURL:            cfg.SiteURL,
		DefaultMaxJobs:     cfg.MaxJobsPerOwner,
		CredentialLength:   cfg.CredentialLength,
		CredentialHashCost: cfg.CredentialHashCost,
		GenerationTimeout:  cfg.GenerationTimeout,
		NotifyTimeout:      cfg.NotifyTimeout,
	}, nil
}

func (r *Runtime) generator(ctx context.Context) (sitegen.Generator, error) {
	cfg := r.Config
	switch cfg.GeneratorProvider {
	case sitegen.ProviderOpenAI:
		key, err := r.resolveKey(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		gen, err := sitegen.NewOpenAIGenerator(sitegen.OpenAIOptions{
			APIKey:       key,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			OnWarning: func(reason, detail string) {
				r.Logger.Warn().Str("reason", reason).Str("detail", detail).Msg("bootstrap: openai model adjusted")
			},
		})
		if err != nil {
			return nil, err
		}
		r.Logger.Info().Str("provider", gen.Name()).Str("model", gen.Model()).Msg("bootstrap: generator ready")
		return gen, nil
	case sitegen.ProviderGemini:
		key, err := r.resolveKey(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		if key == "" {
			break
		}
		gen, err := sitegen.NewGeminiGenerator(ctx, key, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = gen.Close() })
		r.Logger.Info().Str("provider", gen.Name()).Msg("bootstrap: generator ready")
		return gen, nil
	case sitegen.ProviderStatic:
		return sitegen.NewStaticGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported generator provider %q", cfg.GeneratorProvider)
	}
	r.Logger.Warn().Str("provider", cfg.GeneratorProvider).Msg("bootstrap: api key missing, using static templates")
	return sitegen.NewStaticGenerator(), nil
}

func (r *Runtime) resolveKey(ctx context.Context, provider, explicit string) (string, error) {
	if r.Keys == nil {
		return strings.TrimSpace(explicit), nil
	}
	key, err := r.Keys.Resolve(ctx, provider, explicit)
	if err != nil {
		return "", fmt.Errorf("load %s api key: %w", provider, err)
	}
	return key, nil
}

func (r *Runtime) notifier() notify.Notifier {
	cfg := r.Config
	if cfg.SMTPConfigured() {
		n, err := notify.NewSMTPNotifier(notify.SMTPOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err == nil {
			return n
		}
		r.Logger.Error().Err(err).Msg("bootstrap: invalid smtp settings, notifications will only be logged")
	}
	return notify.NewLogNotifier(r.Logger)
}

type pgMigrator struct {
	runner *infra.SQLRunner
}

func (m pgMigrator) Migrate(ctx context.Context) error {
	if _, err := m.runner.Exec(ctx, sqlinline.QMigrateSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
