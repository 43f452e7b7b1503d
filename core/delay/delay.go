// Package delay fires functions at a point in the future from a single
// background goroutine.
//
// Jobs are ordered by fire time and, for equal times, by submission order.
// Job bodies run on the scheduler goroutine itself, so they must be cheap:
// the actor runtime only uses them to enqueue a message onto a mailbox.
package delay

import (
	"container/heap"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrSchedulerClosed is returned by RunLater after ShutDown.
var ErrSchedulerClosed = errors.New("delay: scheduler closed")

type job struct {
	at  time.Time
	seq uint64
	f   func()
}

type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}
func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any)   { *q = append(*q, x.(*job)) }
func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return j
}

// Options configure a Scheduler.
type Options struct {
	Logger *slog.Logger
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Scheduler fires jobs in (time, submission) order until ShutDown.
type Scheduler struct {
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	jobs   jobQueue
	seq    uint64
	closed bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New starts the scheduler goroutine.
func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Scheduler{
		log:  opts.Logger,
		now:  opts.Now,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

// RunLater schedules f to run once d has elapsed. A non-positive d fires as
// soon as the loop gets to it, after already due jobs.
func (s *Scheduler) RunLater(f func(), d time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.seq++
	heap.Push(&s.jobs, &job{at: s.now().Add(d), seq: s.seq, f: f})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of jobs that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// ShutDown stops the loop. A job that is firing completes; no other job fires.
// Pending jobs are discarded.
func (s *Scheduler) ShutDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.jobs = nil
	close(s.stop)
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) loop() {
	defer close(s.done)

	tmr := time.NewTimer(time.Hour)
	tmr.Stop()
	defer tmr.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		var (
			next *job
			wait time.Duration
		)
		if len(s.jobs) > 0 {
			wait = s.jobs[0].at.Sub(s.now())
			if wait <= 0 {
				next = heap.Pop(&s.jobs).(*job)
			}
		}
		empty := len(s.jobs) == 0 && next == nil
		s.mu.Unlock()

		if next != nil {
			s.fire(next)
			continue
		}

		if empty {
			select {
			case <-s.stop:
				return
			case <-s.wake:
			}
			continue
		}

		// an earlier job may arrive while we sleep, so wake-ups re-evaluate the head
		tmr.Reset(wait)
		select {
		case <-s.stop:
			return
		case <-s.wake:
			tmr.Stop()
		case <-tmr.C:
		}
	}
}

func (s *Scheduler) fire(j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("delayed job panicked", slog.Any("recovered", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	j.f()
}
