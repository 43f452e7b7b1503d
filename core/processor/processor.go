// Package processor implements the mailbox and execution engine behind every
// actor: a FIFO task queue drained by at most one worker at a time.
//
// A Processor does not own a goroutine. When work arrives and nobody drains
// the queue, it submits a drain job to a shared Submitter (the worker pool).
// The drain job runs tasks one by one, outside the queue lock, so a task may
// enqueue onto its own processor. When the queue is empty the job returns and
// the worker goes back to the pool.
package processor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codewandler/mailroom/core/metrics"
)

// Task is one unit of work. A returned error or a panic counts as a failure.
type Task func() error

// Submitter runs drain jobs. *pool.Pool implements it.
type Submitter interface {
	Go(f func()) error
}

type goSubmitter struct{}

func (goSubmitter) Go(f func()) error {
	go f()
	return nil
}

// Options configure a Processor. Zero values get defaults in New.
type Options struct {
	Name         string
	Pool         Submitter
	ErrorHandler ErrorHandler
	// Throughput is the number of tasks run per drain job before the worker
	// is handed back to the pool. 0 drains until the queue is empty.
	Throughput int
	Logger     *slog.Logger
	// Depth receives the queue length after every change.
	Depth metrics.Gauge
}

// Processor runs its tasks one at a time in FIFO order. It is safe for
// concurrent use.
type Processor struct {
	name       string
	log        *slog.Logger
	pool       Submitter
	onError    ErrorHandler
	throughput int
	depth      metrics.Gauge

	mu        sync.Mutex
	queue     []Task
	status    Status
	ending    bool
	scheduled bool
	waiters   []chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

// New returns an active, empty Processor. Without a Pool every drain job runs
// on its own goroutine.
func New(opts Options) *Processor {
	if opts.Pool == nil {
		opts.Pool = goSubmitter{}
	}
	if opts.ErrorHandler == nil {
		opts.ErrorHandler = ContinueOnError
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Depth == nil {
		opts.Depth = metrics.NopGauge()
	}
	return &Processor{
		name:       opts.Name,
		log:        opts.Logger,
		pool:       opts.Pool,
		onError:    opts.ErrorHandler,
		throughput: opts.Throughput,
		depth:      opts.Depth,
		status:     StatusActive,
		done:       make(chan struct{}),
	}
}

// Add enqueues t without blocking. On a processor that is no longer active,
// or that is ending gracefully, t is dropped silently.
func (p *Processor) Add(t Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.acceptingLocked() {
		return
	}
	p.enqueueLocked(t)
}

// AddWithBackPressure blocks until fewer than limit tasks are queued and then
// enqueues t. Blocked producers are admitted in arrival order, at least one
// per dequeued task. It returns false without enqueuing when the processor
// stops accepting work while the caller waits, or when ctx ends.
func (p *Processor) AddWithBackPressure(ctx context.Context, t Task, limit int) (bool, error) {
	if limit <= 0 {
		return false, ErrInvalidThreshold
	}

	granted := false
	p.mu.Lock()
	for {
		if !p.acceptingLocked() {
			p.mu.Unlock()
			return false, nil
		}
		if len(p.queue) < limit && (granted || len(p.waiters) == 0) {
			p.enqueueLocked(t)
			p.mu.Unlock()
			return true, nil
		}

		w := make(chan struct{})
		if granted {
			// lost the slot to a non-blocking Add; keep our place at the front
			p.waiters = append([]chan struct{}{w}, p.waiters...)
		} else {
			p.waiters = append(p.waiters, w)
		}
		p.mu.Unlock()

		select {
		case <-w:
			granted = true
		case <-ctx.Done():
			p.mu.Lock()
			if !p.removeWaiterLocked(w) {
				// our wake-up raced with the cancellation; pass it on
				p.signalOneLocked()
			}
			p.mu.Unlock()
			return false, ctx.Err()
		}
		p.mu.Lock()
	}
}

// Size returns the number of queued tasks, excluding a running one.
func (p *Processor) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Processor) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Ending reports whether the processor accepts no more tasks but still drains.
func (p *Processor) Ending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ending && p.status == StatusActive
}

// Done is closed once the processor has stopped or aborted and no task runs.
func (p *Processor) Done() <-chan struct{} { return p.done }

// UnregisterGracefully stops accepting tasks. Queued tasks still run, after
// which the processor stops. Blocked producers are released with false.
func (p *Processor) UnregisterGracefully() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.acceptingLocked() {
		return
	}
	p.ending = true
	p.wakeAllLocked()
	if !p.scheduled && len(p.queue) == 0 {
		p.status = StatusStopped
		p.finishLocked()
	}
}

// Shutdown with now=false is UnregisterGracefully. With now=true pending
// tasks are discarded and the processor stops immediately; a running task
// finishes.
func (p *Processor) Shutdown(now bool) {
	if !now {
		p.UnregisterGracefully()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusActive {
		return
	}
	p.status = StatusStopped
	p.clearLocked()
	p.wakeAllLocked()
	if !p.scheduled {
		p.finishLocked()
	}
}

func (p *Processor) acceptingLocked() bool {
	return p.status == StatusActive && !p.ending
}

func (p *Processor) enqueueLocked(t Task) {
	p.queue = append(p.queue, t)
	p.depth.Set(float64(len(p.queue)))
	if p.scheduled {
		return
	}
	p.scheduled = true
	if err := p.pool.Go(p.drain); err != nil {
		// the pool is gone; queued work must not be stranded
		p.log.Warn("pool rejected drain job, draining on a dedicated goroutine", slog.String("processor", p.name), slog.Any("error", err))
		go p.drain()
	}
}

func (p *Processor) drain() {
	n := 0
	for {
		p.mu.Lock()
		if p.status != StatusActive {
			p.scheduled = false
			p.finishLocked()
			p.mu.Unlock()
			return
		}
		if len(p.queue) == 0 {
			p.scheduled = false
			if p.ending {
				p.status = StatusStopped
				p.finishLocked()
			}
			p.mu.Unlock()
			return
		}
		if p.throughput > 0 && n >= p.throughput {
			if err := p.pool.Go(p.drain); err == nil {
				p.mu.Unlock()
				return
			}
			n = 0
		}

		t := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.depth.Set(float64(len(p.queue)))
		p.signalOneLocked()
		p.mu.Unlock()

		n++
		if err := Safe(t); err != nil {
			p.fail(err)
		}
	}
}

func (p *Processor) fail(err error) {
	d := p.decide(err)
	if d != Abort {
		return
	}
	p.log.Warn("processor aborted", slog.String("processor", p.name), slog.Any("error", err))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusActive {
		return
	}
	p.status = StatusAborted
	p.clearLocked()
	p.wakeAllLocked()
}

func (p *Processor) decide(err error) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("error handler panicked", slog.String("processor", p.name), slog.Any("recovered", r))
			d = Abort
		}
	}()
	return p.onError(err)
}

func (p *Processor) clearLocked() {
	clear(p.queue)
	p.queue = nil
	p.depth.Set(0)
}

func (p *Processor) signalOneLocked() {
	if len(p.waiters) == 0 {
		return
	}
	w := p.waiters[0]
	p.waiters[0] = nil
	p.waiters = p.waiters[1:]
	close(w)
}

func (p *Processor) wakeAllLocked() {
	for _, w := range p.waiters {
		close(w)
	}
	p.waiters = nil
}

func (p *Processor) removeWaiterLocked(w chan struct{}) bool {
	for i, x := range p.waiters {
		if x == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Processor) finishLocked() {
	p.doneOnce.Do(func() { close(p.done) })
}
