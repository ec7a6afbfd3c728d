package worker

import (
	"context"
	"sync"
)

// Job is one unit of work, typically one oracle batch
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produced
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of goroutines
type Pool struct {
	workers int
	ctx     context.Context
}

// NewPool creates a pool with the given number of workers.
// Cancelling ctx stops the pool; jobs that have not started are dropped
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers, ctx: ctx}
}

// indexedJob carries a job's position so results can be placed by index
type indexedJob struct {
	index int
	job   Job
}

// Run executes the jobs and returns their results by job position,
// whatever the completion order. A job dropped by cancellation leaves a
// nil entry. No worker holds a lock while a job executes
func (p *Pool) Run(jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	queue := make(chan indexedJob)
	var wg sync.WaitGroup

	workers := p.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ij := range queue {
				// Cancellation may race with dequeue; never start work after it
				if ctx.Err() != nil {
					continue
				}
				// Each index is written by exactly one worker
				results[ij.index] = ij.job.Execute(ctx)
			}
		}()
	}

feed:
	for i, job := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case queue <- indexedJob{index: i, job: job}:
		}
	}
	close(queue)
	wg.Wait()

	return results
}

// Errors returns the non-nil errors of results, skipping dropped jobs
func Errors(results []Result) []error {
	var errs []error
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := r.GetError(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
