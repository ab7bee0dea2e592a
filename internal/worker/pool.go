// Package worker runs generation jobs on a bounded in-process pool. Jobs
// are closures keyed by task ID; a saturated queue rejects enqueue rather
// than blocking the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// ErrSaturated is returned by Enqueue when the job queue is full.
var ErrSaturated = errors.New("worker: queue is full")

var jobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_total",
		Help: "Generation jobs processed, by outcome.",
	},
	[]string{"status"},
)

// Enqueuer is the narrow surface services use to hand off background work.
type Enqueuer interface {
	Enqueue(taskID string, run func(ctx context.Context) error) error
}

type job struct {
	taskID string
	run    func(ctx context.Context) error
}

// Pool is a fixed-size worker pool over a buffered job channel.
type Pool struct {
	jobs    chan job
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	// FailFn, when set, is called with the task ID and error for any job
	// that returns an error or panics, so the owning record can be marked
	// failed.
	FailFn func(taskID string, err error)

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewPool sizes the pool. Non-positive values fall back to a single worker
// and an unbuffered queue slot per worker.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &Pool{
		jobs:    make(chan job, queueSize),
		workers: workers,
	}
}

// Start launches the workers. The derived context is cancelled by Shutdown;
// in-flight jobs observe cancellation through it.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	log.Info().Int("workers", p.workers).Int("queue", cap(p.jobs)).Msg("worker pool started")
}

// Enqueue queues a job, failing fast when the queue is saturated or the
// pool has shut down.
func (p *Pool) Enqueue(taskID string, run func(ctx context.Context) error) error {
	// The lock is held across the send attempt so Shutdown cannot close the
	// channel between the closed check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSaturated
	}

	select {
	case p.jobs <- job{taskID: taskID, run: run}:
		return nil
	default:
		jobsTotal.WithLabelValues("rejected").Inc()
		return ErrSaturated
	}
}

// Shutdown stops accepting jobs, cancels the worker context and waits for
// in-flight jobs to return.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	if !started {
		return
	}
	p.cancel()
	close(p.jobs)
	p.wg.Wait()
	log.Info().Msg("worker pool drained")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.runOne(ctx, j)
	}
	_ = id
}

func (p *Pool) runOne(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker: job panicked: %v", r)
			log.Error().Str("task_id", j.taskID).Interface("panic", r).Msg("generation job panicked")
			jobsTotal.WithLabelValues("panic").Inc()
			if p.FailFn != nil {
				p.FailFn(j.taskID, err)
			}
		}
	}()

	if err := j.run(ctx); err != nil {
		log.Warn().Err(err).Str("task_id", j.taskID).Msg("generation job failed")
		jobsTotal.WithLabelValues("failed").Inc()
		if p.FailFn != nil {
			p.FailFn(j.taskID, err)
		}
		return
	}
	jobsTotal.WithLabelValues("completed").Inc()
}
