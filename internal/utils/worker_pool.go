package utils

import (
	"context"
	"fmt"
	"sync"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// WorkerPool manages a pool of workers to execute jobs.
type WorkerPool struct {
	workers   int
	jobQueue  chan Job
	waitGroup sync.WaitGroup
	onPanic   func(recovered any)
}

// NewWorkerPool creates a new WorkerPool with the specified number of workers.
// onPanic, when set, receives values recovered from panicking jobs; the worker
// keeps running either way.
func NewWorkerPool(workers int, onPanic func(recovered any)) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan Job, workers),
		onPanic:  onPanic,
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

// worker processes jobs from the jobQueue.
func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for job := range wp.jobQueue {
		wp.run(job)
	}
}

func (wp *WorkerPool) run(job Job) {
	defer func() {
		if r := recover(); r != nil && wp.onPanic != nil {
			wp.onPanic(r)
		}
	}()
	job.Task()
}

// Submit queues a job, blocking while the queue is full. It gives up when ctx
// is done, in which case the task never runs.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case wp.jobQueue <- Job{Task: task}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job not queued: %w", ctx.Err())
	}
}

// Shutdown waits for all queued jobs to finish and then closes the worker pool.
// Submit must not be called afterwards.
func (wp *WorkerPool) Shutdown() {
	close(wp.jobQueue)
	wp.waitGroup.Wait()
}
