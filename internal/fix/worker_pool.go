package fix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/pghealth/internal/models"
)

// task is one statement together with its position in the batch.
type task struct {
	index int
	stmt  statement
}

// outcome is the result for the task at index.
type outcome struct {
	index  int
	result models.FixResult
}

// WorkerPool runs fix statements concurrently
type WorkerPool struct {
	workers int
	handle  func(context.Context, statement) models.FixResult
	jobs    chan task
	results chan outcome
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, handle func(context.Context, statement) models.FixResult) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		handle:  handle,
		jobs:    make(chan task, workers*2),
		results: make(chan outcome, workers*2),
	}
}

// Start starts the worker pool
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// worker executes statements from the job queue
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.results <- outcome{index: job.index, result: p.run(id, job)}
		}
	}
}

// run turns a panicking statement into a failed result so the batch stays complete.
func (p *WorkerPool) run(id int, job task) (result models.FixResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panic recovered",
				slog.Int("worker_id", id),
				slog.String("target", job.stmt.target),
				slog.String("panic", fmt.Sprint(r)),
			)
			result = job.stmt.failed(fmt.Errorf("panic: %v", r))
		}
	}()
	return p.handle(p.ctx, job.stmt)
}

// Submit queues a statement. It returns false once the pool's context is done.
func (p *WorkerPool) Submit(job task) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- job:
		return true
	}
}

// Results returns the results channel
func (p *WorkerPool) Results() <-chan outcome {
	return p.results
}

// Stop stops the worker pool and waits for all workers to finish
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// Close jobs channel to signal workers to stop
	close(p.jobs)

	p.wg.Wait()

	close(p.results)

	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}
