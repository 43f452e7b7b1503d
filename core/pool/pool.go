// Package pool runs short-lived jobs on goroutines while capping how many of
// them execute at the same time. All actors of a system share one Pool.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codewandler/mailroom/core/metrics"
)

// ErrPoolClosed is returned by Go after Shutdown.
var ErrPoolClosed = errors.New("pool: closed")

// Options configure a Pool.
type Options struct {
	// MaxWorkers caps concurrently running jobs. 0 or negative means unlimited.
	MaxWorkers int
	Logger     *slog.Logger
	// Inflight receives the number of running jobs.
	Inflight metrics.Gauge
}

// Pool runs submitted jobs with bounded concurrency until it is shut down.
type Pool struct {
	log      *slog.Logger
	sem      *semaphore.Weighted
	inflight atomic.Int32
	gauge    metrics.Gauge

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}
}

// New returns a Pool that accepts jobs until Shutdown.
func New(opts Options) *Pool {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Inflight == nil {
		opts.Inflight = metrics.NopGauge()
	}
	p := &Pool{
		log:   opts.Logger,
		gauge: opts.Inflight,
		done:  make(chan struct{}),
	}
	if opts.MaxWorkers > 0 {
		p.sem = semaphore.NewWeighted(int64(opts.MaxWorkers))
	}
	return p
}

// Go submits f. It never blocks; f waits for a free worker on its own goroutine.
func (p *Pool) Go(f func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if p.sem != nil {
			// cannot fail with a background context
			_ = p.sem.Acquire(context.Background(), 1)
			defer p.sem.Release(1)
		}
		p.gauge.Set(float64(p.inflight.Add(1)))
		defer func() { p.gauge.Set(float64(p.inflight.Add(-1))) }()
		p.run(f)
	}()
	return nil
}

func (p *Pool) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pool job panicked", slog.Any("recovered", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	f()
}

// Inflight returns the number of jobs currently running.
func (p *Pool) Inflight() int { return int(p.inflight.Load()) }

// Shutdown rejects further submissions. Submitted jobs still run.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
}

// Done is closed once the pool is shut down and every job has returned.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Wait blocks until Done or ctx ends.
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitTermination waits at most timeout and reports whether the pool terminated.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Wait(ctx) == nil
}
