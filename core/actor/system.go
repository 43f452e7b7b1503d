package actor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/mailroom/core/delay"
	"github.com/codewandler/mailroom/core/pool"
	"github.com/codewandler/mailroom/core/processor"
)

// Options configure a System. Zero values get defaults in NewSystem.
type Options struct {
	// ID names the system in logs. Defaults to "system-<random>".
	ID      string
	Context context.Context
	Logger  *slog.Logger
	// Workers caps the number of actors executing at the same time.
	// 0 means one goroutine per busy actor.
	Workers int
	// Throughput is the number of messages an actor handles before it yields
	// its worker. 0 means until its queue is empty.
	Throughput int
	Metrics    Metrics
	// Defaults fill in the zero fields of the Settings passed to RegisterActor.
	Defaults Settings
}

// System is a registry of named actors sharing one worker pool and one
// delayed-delivery scheduler.
type System struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	log        *slog.Logger
	metrics    Metrics
	pool       *pool.Pool
	delay      *delay.Scheduler
	throughput int
	defaults   Settings

	mu     sync.Mutex
	actors map[string]*actor
	closed bool
	// draining holds unregistered or stopped actors until their processor is done.
	draining map[*actor]struct{}
}

// RegisterOption configures a single registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	initMessage any
	hasInit     bool
}

// WithInitMessage makes msg the first message the new actor receives. It is
// ignored when the name is already registered.
func WithInitMessage(msg any) RegisterOption {
	return func(o *registerOpts) {
		o.initMessage = msg
		o.hasInit = true
	}
}

// NewSystem starts the worker pool and the delay scheduler of a new System.
func NewSystem(opts Options) *System {
	if opts.ID == "" {
		opts.ID = fmt.Sprintf("system-%s", gonanoid.Must(6))
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics()
	}
	if opts.Defaults.ErrorHandler == nil {
		opts.Defaults.ErrorHandler = processor.ContinueOnError
	}

	log := opts.Logger.With(slog.String("system", opts.ID))
	s := &System{
		id:         opts.ID,
		log:        log,
		metrics:    opts.Metrics,
		throughput: opts.Throughput,
		defaults:   opts.Defaults,
		actors:     make(map[string]*actor),
		draining:   make(map[*actor]struct{}),
		pool: pool.New(pool.Options{
			MaxWorkers: opts.Workers,
			Logger:     log,
			Inflight:   opts.Metrics.PoolInflight(),
		}),
		delay: delay.New(delay.Options{Logger: log}),
	}
	s.ctx, s.cancel = context.WithCancel(opts.Context)
	log.Debug("actor system created", slog.Int("workers", opts.Workers), slog.Int("throughput", opts.Throughput))
	return s
}

func (s *System) ID() string { return s.id }

// RegisterActor creates an actor named name, or returns a handle to the
// existing one; in that case factory, settings and options are ignored. The
// factory runs under the registry lock and must not use the System.
func (s *System) RegisterActor(name string, factory Factory, settings Settings, opts ...RegisterOption) (*Handle, error) {
	return s.register(name, factory, settings, nil, opts...)
}

func (s *System) register(name string, factory Factory, settings Settings, sender *Handle, opts ...RegisterOption) (*Handle, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	var ro registerOpts
	for _, opt := range opts {
		opt(&ro)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSystemShutDown
	}
	if existing, ok := s.actors[name]; ok {
		return s.newHandle(name, existing, sender), nil
	}

	recv, err := create(factory)
	if err != nil {
		return nil, fmt.Errorf("register actor %q: %w", name, err)
	}

	a := newActor(s, name, recv, settings.withDefaults(s.defaults))
	if ro.hasInit {
		a.proc.Add(a.messageTask(ro.initMessage, nil, noHandler{}))
	}
	s.actors[name] = a
	s.metrics.ActorsRegistered(len(s.actors))
	s.log.Debug("actor registered", slog.String("actor", name), slog.Int("queue_limit", a.settings.QueueLimit))

	return s.newHandle(name, a, sender), nil
}

func create(factory Factory) (recv Receiver, err error) {
	if factory == nil {
		return nil, ErrNilReceiver
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actor factory panicked: %v", r)
		}
	}()
	if recv = factory(); recv == nil {
		return nil, ErrNilReceiver
	}
	return recv, nil
}

// GetActor returns a handle for name. The actor does not need to exist yet.
func (s *System) GetActor(name string) *Handle {
	return s.newHandle(name, nil, nil)
}

// UnregisterActor removes name from the registry. Its queued messages are
// still delivered; sending through any handle fails afterwards.
func (s *System) UnregisterActor(name string) bool {
	s.mu.Lock()
	a, ok := s.actors[name]
	if ok {
		delete(s.actors, name)
		s.trackLocked(a)
		s.metrics.ActorsRegistered(len(s.actors))
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	a.unregister()
	s.log.Debug("actor unregistered", slog.String("actor", name))
	return true
}

// unregisterInstance removes a only if it is still the actor registered
// under its name.
func (s *System) unregisterInstance(a *actor) bool {
	s.mu.Lock()
	cur, ok := s.actors[a.name]
	ok = ok && cur == a
	if ok {
		delete(s.actors, a.name)
		s.trackLocked(a)
		s.metrics.ActorsRegistered(len(s.actors))
	}
	s.mu.Unlock()

	if ok {
		a.unregister()
	}
	return ok
}

// Tell sends msg to the actor registered as name.
func (s *System) Tell(name string, msg any) error {
	return s.GetActor(name).Tell(msg)
}

// TellDelayed delivers msg to name after delay. If the actor is unregistered
// by then, the message is dropped.
func (s *System) TellDelayed(name string, msg any, delay time.Duration) error {
	return s.GetActor(name).tellDelayed(msg, delay)
}

// Names returns the registered actor names in sorted order.
func (s *System) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.actors))
	for name := range s.actors {
		names = append(names, name)
	}
	s.mu.Unlock()
	slices.Sort(names)
	return names
}

func (s *System) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%s{actors=%d, closed=%t, busy_workers=%d}", s.id, len(s.actors), s.closed, s.pool.Inflight())
}

// ShutDown stops all actors after their queued messages, then the worker
// pool and the scheduler. It does not wait. The system context is cancelled
// once everything has terminated.
func (s *System) ShutDown() { s.stop(false) }

// ShutDownNow stops all actors immediately, discarding queued messages.
// Messages being handled right now still complete.
func (s *System) ShutDownNow() {
	s.stop(true)
	s.cancel()
}

// ShutDownAndWait is ShutDown followed by waiting for termination.
func (s *System) ShutDownAndWait() {
	s.stop(false)
	_ = s.Wait(context.Background())
}

// ShutDownAndWaitTimeout is ShutDown followed by waiting at most timeout. It
// reports whether the system terminated in time. Handlers still running are
// not interrupted.
func (s *System) ShutDownAndWaitTimeout(timeout time.Duration) bool {
	s.stop(false)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Wait(ctx) == nil
}

// Wait blocks until a shut down system has terminated or ctx ends. This
// includes actors unregistered before the shutdown that are still draining.
func (s *System) Wait(ctx context.Context) error {
	// stop tracks every actor before it shuts the pool down, so the snapshot
	// below is complete once the pool is done
	if err := waitFor(ctx, s.pool.Done()); err != nil {
		return err
	}

	s.mu.Lock()
	actors := make([]*actor, 0, len(s.draining))
	for a := range s.draining {
		actors = append(actors, a)
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actors {
		g.Go(func() error { return waitFor(gctx, a.proc.Done()) })
	}
	g.Go(func() error { return waitFor(gctx, s.delay.Done()) })
	if err := g.Wait(); err != nil {
		return err
	}
	s.cancel()
	return nil
}

func (s *System) stop(now bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	actors := make([]*actor, 0, len(s.actors))
	for _, a := range s.actors {
		actors = append(actors, a)
		s.trackLocked(a)
	}
	clear(s.actors)
	s.metrics.ActorsRegistered(0)
	s.mu.Unlock()

	s.log.Info("shutting down actor system", slog.Int("actors", len(actors)), slog.Bool("now", now))

	s.delay.ShutDown()
	for _, a := range actors {
		a.shutdown(now)
	}
	s.pool.Shutdown()

	go func() {
		// Wait cancels the system context once everything has terminated
		_ = s.Wait(context.Background())
	}()
}

// trackLocked keeps a until its processor is done, so that Wait covers it.
func (s *System) trackLocked(a *actor) {
	s.draining[a] = struct{}{}
	go func() {
		<-a.proc.Done()
		s.mu.Lock()
		delete(s.draining, a)
		s.mu.Unlock()
	}()
}

func (s *System) lookup(name string) *actor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actors[name]
}

func (s *System) newHandle(name string, a *actor, sender *Handle) *Handle {
	h := &Handle{name: name, sys: s, sender: sender}
	if a != nil {
		h.actor.Store(a)
	}
	return h
}

func waitFor(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
