package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// indexed carries a job or result together with its submission position
type indexed[T any] struct {
	index int
	value T
}

// Pool runs jobs on a fixed number of goroutines. Results are kept in
// submission order regardless of which worker finished first. Call Start
// before Submit, and Submit from a single goroutine.
type Pool struct {
	workers    int
	jobQueue   chan indexed[Job]
	results    chan indexed[Result]
	collected  chan struct{}
	out        []Result
	submitted  int
	onResult   func(Result)
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// PoolOption customizes a Pool
type PoolOption func(*Pool)

// WithOnResult registers a callback run for each result as it arrives.
// Callbacks run on a single goroutine, one at a time.
func WithOnResult(fn func(Result)) PoolOption {
	return func(p *Pool) {
		p.onResult = fn
	}
}

// NewPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewPool(ctx context.Context, workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers:    workers,
		jobQueue:   make(chan indexed[Job], workers*2),
		results:    make(chan indexed[Result], workers*2),
		collected:  make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

// worker executes queued jobs until the queue closes or the pool is cancelled
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			// The collector drains results until every worker exits, so a
			// finished job's result is never dropped
			p.results <- indexed[Result]{index: job.index, value: job.value.Execute(p.ctx)}
		}
	}
}

// collect stores results by index as they arrive
func (p *Pool) collect() {
	defer close(p.collected)

	for r := range p.results {
		for len(p.out) <= r.index {
			p.out = append(p.out, nil)
		}
		p.out[r.index] = r.value
		if p.onResult != nil {
			p.onResult(r.value)
		}
	}
}

// Submit queues job and reports whether it was accepted. It returns false
// without blocking once the pool is cancelled.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexed[Job]{index: p.submitted, value: job}:
		p.submitted++
		return true
	}
}

// Wait waits for all submitted jobs and returns one result per submission,
// in submission order. Jobs skipped because the pool was cancelled have a
// nil result.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collected

	out := make([]Result, p.submitted)
	copy(out, p.out)
	p.cancelFunc()
	return out
}

// Shutdown cancels the pool and waits for running jobs to return
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	<-p.collected
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
