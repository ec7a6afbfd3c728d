package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// batchOutcome implements Result
type batchOutcome struct {
	batch int
	err   error
}

func (r *batchOutcome) GetError() error {
	return r.err
}

// batchCall implements Job. It sleeps to simulate an oracle round trip
type batchCall struct {
	batch    int
	delay    time.Duration
	fail     bool
	started  *int32
	inflight *int32
	peak     *int32
}

func (j *batchCall) Execute(ctx context.Context) Result {
	if j.started != nil {
		atomic.AddInt32(j.started, 1)
	}
	if j.inflight != nil {
		n := atomic.AddInt32(j.inflight, 1)
		defer atomic.AddInt32(j.inflight, -1)
		for {
			peak := atomic.LoadInt32(j.peak)
			if n <= peak || atomic.CompareAndSwapInt32(j.peak, peak, n) {
				break
			}
		}
	}
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return &batchOutcome{batch: j.batch, err: ctx.Err()}
		}
	}
	if j.fail {
		return &batchOutcome{batch: j.batch, err: errors.New("oracle unavailable")}
	}
	return &batchOutcome{batch: j.batch}
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{5, 5},
		{0, 1},
		{-3, 1},
	}
	for _, tt := range tests {
		if got := NewPool(context.Background(), tt.in).workers; got != tt.want {
			t.Errorf("NewPool(%d).workers = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPool_RunKeepsJobOrder(t *testing.T) {
	// Later batches finish first
	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = &batchCall{batch: i, delay: time.Duration(len(jobs)-i) * 5 * time.Millisecond}
	}

	results := NewPool(context.Background(), 3).Run(jobs)

	if len(results) != len(jobs) {
		t.Fatalf("Expected %d results, got %d", len(jobs), len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Fatalf("Result %d missing", i)
		}
		if got := r.(*batchOutcome).batch; got != i {
			t.Errorf("results[%d] belongs to batch %d", i, got)
		}
	}
}

func TestPool_RespectsWorkerLimit(t *testing.T) {
	var inflight, peak int32
	jobs := make([]Job, 12)
	for i := range jobs {
		jobs[i] = &batchCall{batch: i, delay: 10 * time.Millisecond, inflight: &inflight, peak: &peak}
	}

	NewPool(context.Background(), 3).Run(jobs)

	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("Expected at most 3 concurrent jobs, saw %d", p)
	}
	if p := atomic.LoadInt32(&peak); p < 1 {
		t.Errorf("Expected jobs to run, peak was %d", p)
	}
}

func TestPool_ErrorsStayPerJob(t *testing.T) {
	jobs := []Job{
		&batchCall{batch: 0},
		&batchCall{batch: 1, fail: true},
		&batchCall{batch: 2},
	}

	results := NewPool(context.Background(), 2).Run(jobs)

	if results[0].GetError() != nil || results[2].GetError() != nil {
		t.Error("Expected healthy batches to succeed")
	}
	if results[1].GetError() == nil {
		t.Error("Expected batch 1 to fail")
	}
	if errs := Errors(results); len(errs) != 1 {
		t.Errorf("Expected 1 error, got %d", len(errs))
	}
}

func TestPool_CancelledBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var started int32
	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = &batchCall{batch: i, started: &started}
	}

	results := NewPool(ctx, 2).Run(jobs)

	if n := atomic.LoadInt32(&started); n != 0 {
		t.Errorf("Expected no job to start after cancellation, %d started", n)
	}
	for i, r := range results {
		if r != nil {
			t.Errorf("Expected nil result for dropped job %d", i)
		}
	}
}

func TestPool_CancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var started int32
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = &batchCall{batch: i, delay: 50 * time.Millisecond, started: &started}
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := NewPool(ctx, 2).Run(jobs)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run did not stop promptly after cancellation: %v", elapsed)
	}

	if n := atomic.LoadInt32(&started); n >= int32(len(jobs)) {
		t.Errorf("Expected some jobs to be dropped, all %d started", n)
	}
	dropped := 0
	for _, r := range results {
		if r == nil {
			dropped++
		}
	}
	if dropped == 0 {
		t.Error("Expected nil results for dropped jobs")
	}
}

func TestPool_Empty(t *testing.T) {
	if results := NewPool(context.Background(), 4).Run(nil); len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
