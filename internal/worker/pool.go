package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned by Enqueue after Shutdown has started.
var ErrPoolClosed = errors.New("worker pool is closed")

// Handler executes one job. It runs inside an admission slot with a context
// of its own that is only cancelled when shutdown runs out of time.
type Handler interface {
	Handle(ctx context.Context, jobID string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, jobID string) error

func (f HandlerFunc) Handle(ctx context.Context, jobID string) error { return f(ctx, jobID) }

// Pool owns a fixed number of goroutines pulling job ids from an unbounded
// FIFO queue. Enqueue never blocks.
type Pool struct {
	handler   Handler
	admission *Admission
	logger    zerolog.Logger
	size      int

	mu      sync.Mutex
	queue   []string
	queued  map[string]struct{}
	active  map[string]context.CancelFunc
	running bool
	closed  bool

	signal     chan struct{}
	stopCh     chan struct{}
	stopCtx    context.Context
	stopCancel context.CancelFunc
	runCtx     context.Context
	runCancel  context.CancelFunc
	wg         sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolSize sets the number of worker goroutines. Defaults to the admission limit.
func WithPoolSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// NewPool creates a pool. Call Start before jobs are processed; jobs
// enqueued earlier wait in the queue.
func NewPool(handler Handler, admission *Admission, logger zerolog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		handler:   handler,
		admission: admission,
		logger:    logger,
		size:      admission.Limit(),
		queued:    make(map[string]struct{}),
		active:    make(map[string]context.CancelFunc),
		signal:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of worker goroutines.
func (p *Pool) Size() int { return p.size }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.running {
		return nil
	}
	p.running = true
	// Job contexts keep values from ctx but are only cancelled by Shutdown.
	p.runCtx, p.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	p.stopCtx, p.stopCancel = context.WithCancel(ctx)

	p.logger.Info().
		Int("size", p.size).
		Int("admission_limit", p.admission.Limit()).
		Msg("worker pool starting")

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return nil
}

// Enqueue schedules a job. Ids already waiting in the queue are ignored.
func (p *Pool) Enqueue(jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if _, ok := p.queued[jobID]; ok {
		return nil
	}
	p.queued[jobID] = struct{}{}
	p.queue = append(p.queue, jobID)
	p.notify()
	return nil
}

// Pending returns the number of queued jobs not yet picked by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Active returns the number of jobs currently being handled.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Shutdown stops accepting jobs and waits for running ones. If ctx expires
// first, running jobs are cancelled and awaited. Queued jobs stay pending in
// the store.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	wasRunning := p.running
	p.running = false
	dropped := len(p.queue)
	p.queue = nil
	p.queued = make(map[string]struct{})
	p.mu.Unlock()

	if !wasRunning {
		return nil
	}

	p.logger.Info().Int("dropped_queued", dropped).Msg("worker pool stopping")
	close(p.stopCh)
	p.stopCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		p.logger.Info().Msg("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn().Msg("worker pool shutdown timed out, cancelling active jobs")
		p.runCancel()
		<-done
		err = ctx.Err()
	}
	p.runCancel()
	return err
}

func (p *Pool) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		jobID, ok := p.next()
		if !ok {
			return
		}
		p.run(jobID)
	}
}

func (p *Pool) next() (string, bool) {
	for {
		select {
		case <-p.stopCh:
			return "", false
		default:
		}

		p.mu.Lock()
		if len(p.queue) > 0 {
			jobID := p.queue[0]
			p.queue[0] = ""
			p.queue = p.queue[1:]
			delete(p.queued, jobID)
			if len(p.queue) > 0 {
				p.notify()
			}
			p.mu.Unlock()
			return jobID, true
		}
		p.mu.Unlock()

		select {
		case <-p.stopCh:
			return "", false
		case <-p.signal:
		}
	}
}

func (p *Pool) run(jobID string) {
	log := p.logger.With().Str("job_id", jobID).Logger()

	slot, err := p.admission.Acquire(p.stopCtx)
	if err != nil {
		log.Debug().Err(err).Msg("worker: admission abandoned")
		return
	}
	defer slot.Release()

	ctx, cancel := context.WithCancel(p.runCtx)
	p.mu.Lock()
	p.active[jobID] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.active, jobID)
		p.mu.Unlock()
		cancel()
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("worker: handler panicked")
		}
	}()

	if err := p.handler.Handle(ctx, jobID); err != nil {
		log.Error().Err(err).Msg("worker: job handler error")
	}
}
