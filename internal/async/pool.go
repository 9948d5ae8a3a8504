// Package async runs pipeline jobs on a bounded worker pool.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"
)

type task struct {
	ctx   context.Context
	index int
	job   Job
}

// Pool is a fixed set of workers draining a bounded channel.
type Pool struct {
	handle  Handler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan task
	wg   sync.WaitGroup
	once sync.Once

	// closeMu guards closed and the channel close; senders hold it shared.
	closeMu sync.RWMutex
	closed  bool

	mu      sync.Mutex
	next    int
	results []Result
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan task, n)
		}
	}
}

// WithProcessTimeout bounds each job. Zero leaves jobs bounded only by the caller's context.
func WithProcessTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(handle Handler, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		handle:  handle,
		logger:  logger,
		workers: 4,
		ch:      make(chan task, 256),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("async.worker.started", "worker_id", workerID)

				for t := range p.ch {
					res := p.run(workerID, t)
					p.mu.Lock()
					p.results = append(p.results, res)
					p.mu.Unlock()
				}

				p.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *Pool) run(workerID int, t task) (res Result) {
	start := time.Now()
	res = Result{Index: t.index, Job: t.job}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("async.job.panic", "worker_id", workerID, "path", t.job.Path, "panic", r, "stack", string(debug.Stack()))
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Elapsed = time.Since(start)
	}()

	ctx := t.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	res.Output, res.Err = p.handle(ctx, t.job)
	if res.Err != nil {
		p.logger.Error("async.job.failed", "worker_id", workerID, "path", t.job.Path, "error", res.Err)
	} else {
		p.logger.Info("async.job.ok", "worker_id", workerID, "path", t.job.Path)
	}
	return res
}

// Enqueue blocks while the queue is full. Jobs run under ctx plus the per-job timeout.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		p.logger.Warn("async.enqueue.rejected", "path", job.Path)
		return ErrClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	p.mu.Lock()
	t := task{ctx: ctx, index: p.next, job: job}
	p.next++
	p.mu.Unlock()

	select {
	case p.ch <- t:
		return nil
	default:
		p.logger.Debug("async.queue.full", "path", job.Path)
	}
	select {
	case p.ch <- t:
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		p.results = append(p.results, Result{Index: t.index, Job: job, Err: ctx.Err()})
		p.mu.Unlock()
		return ctx.Err()
	}
}

// Shutdown stops intake, waits for the workers and returns results in submission order.
// If ctx ends first, the results finished so far are returned.
func (p *Pool) Shutdown(ctx context.Context) []Result {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.closeMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("async.shutdown.interrupted")
	case <-done:
		p.logger.Debug("async.shutdown.drained")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := slices.Clone(p.results)
	slices.SortFunc(out, func(a, b Result) int { return a.Index - b.Index })
	return out
}

// Run processes jobs and returns one result per job in input order.
// After ctx ends, the remaining jobs are reported with the context error.
func Run(ctx context.Context, jobs []Job, handle Handler, logger *slog.Logger, opts ...Option) []Result {
	p := NewPool(handle, logger, opts...)
	for _, j := range jobs {
		_ = p.Enqueue(ctx, j)
	}
	return p.Shutdown(context.Background())
}
