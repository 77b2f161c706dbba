package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tcgsync/pkg/logger"
	"tcgsync/pkg/ratelimit"
)

var (
	// ErrDuplicate is returned by Submit while a job with the same key is queued or running
	ErrDuplicate = errors.New("job with this key is already in flight")
	// ErrStopped is returned by Submit after Stop or cancellation
	ErrStopped = errors.New("worker pool is shutting down")
)

// Handler processes one job
type Handler[J, R any] func(ctx context.Context, job J) R

// Result pairs a job with its handler output
type Result[J, R any] struct {
	Key      string
	Job      J
	Value    R
	Duration time.Duration
}

type queued[J any] struct {
	key string
	job J
}

// WorkerPool runs a fixed number of workers over a bounded queue. Results
// must be drained from Results until it is closed by Stop.
type WorkerPool[J, R any] struct {
	numWorkers  int
	jobQueue    chan queued[J]
	resultQueue chan Result[J, R]
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handler     Handler[J, R]
	rateLimiter ratelimit.Limiter
	logger      logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool
}

// New creates a pool bound to ctx. A nil limiter means no pacing.
func New[J, R any](ctx context.Context, numWorkers int, handler Handler[J, R], limiter ratelimit.Limiter, log logger.Logger) *WorkerPool[J, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[J, R]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan queued[J], numWorkers*2),
		resultQueue: make(chan Result[J, R], numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handler:     handler,
		rateLimiter: limiter,
		logger:      logger.OrDefault(log).WithField("component", "workerpool"),
		inFlight:    make(map[string]struct{}),
	}
}

// Start launches the workers
func (wp *WorkerPool[J, R]) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs to finish and closes Results
func (wp *WorkerPool[J, R]) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
	wp.logger.Debug("Worker pool stopped")
}

// Cancel aborts running jobs; queued jobs are dropped. Stop must still be called.
func (wp *WorkerPool[J, R]) Cancel() {
	wp.cancel()
}

// Submit queues job under key, blocking while the queue is full
func (wp *WorkerPool[J, R]) Submit(key string, job J) error {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return ErrStopped
	}
	if _, busy := wp.inFlight[key]; busy {
		wp.mu.Unlock()
		return fmt.Errorf("%s: %w", key, ErrDuplicate)
	}
	wp.inFlight[key] = struct{}{}
	wp.mu.Unlock()

	select {
	case wp.jobQueue <- queued[J]{key: key, job: job}:
		return nil
	case <-wp.ctx.Done():
		wp.release(key)
		return ErrStopped
	}
}

// Results delivers one Result per processed job
func (wp *WorkerPool[J, R]) Results() <-chan Result[J, R] {
	return wp.resultQueue
}

func (wp *WorkerPool[J, R]) release(key string) {
	wp.mu.Lock()
	delete(wp.inFlight, key)
	wp.mu.Unlock()
}

func (wp *WorkerPool[J, R]) worker(id int) {
	defer wp.wg.Done()

	for q := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.release(q.key)
			continue
		}

		if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
			wp.release(q.key)
			continue
		}

		start := time.Now()
		value := wp.handler(wp.ctx, q.job)
		result := Result[J, R]{Key: q.key, Job: q.job, Value: value, Duration: time.Since(start)}
		wp.release(q.key)

		wp.resultQueue <- result
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}
