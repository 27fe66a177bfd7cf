// Package worker runs generation jobs on a fixed set of goroutines gated by
// an admission semaphore.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Admission bounds how many jobs may generate at the same time. It holds no
// job data and is safe for concurrent use.
type Admission struct {
	sem   *semaphore.Weighted
	limit int
	inUse atomic.Int64
}

// NewAdmission returns a controller admitting at most limit jobs. Values
// below one are raised to one.
func NewAdmission(limit int) *Admission {
	if limit < 1 {
		limit = 1
	}
	return &Admission{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Acquire blocks until a slot is free or ctx is done.
func (a *Admission) Acquire(ctx context.Context) (*Slot, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	a.inUse.Add(1)
	return &Slot{release: func() {
		a.inUse.Add(-1)
		a.sem.Release(1)
	}}, nil
}

// Limit returns the configured maximum.
func (a *Admission) Limit() int { return a.limit }

// InUse returns the number of slots currently held.
func (a *Admission) InUse() int { return int(a.inUse.Load()) }

// Slot is a held admission. Release is idempotent.
type Slot struct {
	once    sync.Once
	release func()
}

// Release frees the slot.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	s.once.Do(s.release)
}
