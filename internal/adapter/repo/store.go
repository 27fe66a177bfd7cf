package repo

import (
	"context"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/infra"
)

// JobStorePG hands out per-job sessions bound to a dedicated pooled connection.
type JobStorePG struct {
	*JobRepositoryPG
	runner *infra.SQLRunner
}

// NewJobStore wraps the shared runner.
func NewJobStore(runner *infra.SQLRunner) *JobStorePG {
	return &JobStorePG{JobRepositoryPG: NewJobRepository(runner), runner: runner}
}

// Session acquires a connection that is held until Close.
func (s *JobStorePG) Session(ctx context.Context) (domain.JobSession, error) {
	conn, release, err := s.runner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &sessionPG{JobRepositoryPG: NewJobRepository(conn), release: release}, nil
}

type sessionPG struct {
	*JobRepositoryPG
	release func()
}

func (s *sessionPG) Close() error {
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return nil
}

var _ domain.JobStore = (*JobStorePG)(nil)
