// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is one unit of queued work: run the conversion for a pending job.
type Task struct {
	JobID          string
	OriginalName   string
	SourceLocation string
}

// Runner executes a Task. Service is the production Runner.
type Runner interface {
	Run(ctx context.Context, t Task) error
}

// Queue is a fixed pool of workers draining a buffered channel of Tasks.
type Queue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Task
	quit    chan struct{}
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent Runs.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets the buffered task capacity.
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

// WithRunTimeout bounds each Run. Zero leaves Runs unbounded.
func WithRunTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewQueue starts the workers and returns the Queue.
func NewQueue(r Runner, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		runner:  r,
		logger:  logger,
		workers: 4,
		ch:      make(chan Task, 256),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for t := range q.ch {
					q.run(workerID, t)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) run(workerID int, t Task) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	if err := q.runner.Run(ctx, t); err != nil {
		q.logger.Warn("conversion failed", "worker_id", workerID, "job_id", t.JobID, "error", err)
		return
	}
	q.logger.Info("conversion completed", "worker_id", workerID, "job_id", t.JobID)
}

// Enqueue hands t to a worker. It blocks while the buffer is full, until ctx
// is done or Shutdown is called. After Shutdown it returns ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.ch <- t:
		q.logger.Debug("queued job", "job_id", t.JobID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "job_id", t.JobID)
	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrQueueClosed
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish, or for
// ctx to be done. Enqueue calls blocked on a full buffer return
// ErrQueueClosed.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The channel closes only once no Enqueue can still send on it.
		q.senders.Wait()
		close(q.ch)
		q.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
		return nil
	}
}
