package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/mailroom/core/pool"
)

func newTestProcessor(t *testing.T, onError ErrorHandler) *Processor {
	t.Helper()
	p := New(Options{
		Name:         t.Name(),
		Pool:         pool.New(pool.Options{MaxWorkers: 4}),
		ErrorHandler: onError,
	})
	t.Cleanup(func() { p.Shutdown(true) })
	return p
}

func nop() error { return nil }

// blocker returns a task that waits for one token on gate.
func blocker(gate <-chan struct{}) Task {
	return func() error {
		<-gate
		return nil
	}
}

func awaitDone(t *testing.T, p *Processor) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not finish")
	}
}

func TestProcessor_serialFIFOUnderConcurrentProducers(t *testing.T) {
	p := newTestProcessor(t, nil)

	const (
		producers = 8
		perProd   = 500
	)

	var (
		running  atomic.Int32
		overlaps atomic.Int32
		mu       sync.Mutex
		executed []int
		enqueued []int
	)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProd; j++ {
				id := i*perProd + j
				// enqueue order is recorded under the same lock that serializes Add calls
				mu.Lock()
				enqueued = append(enqueued, id)
				p.Add(func() error {
					if running.Add(1) > 1 {
						overlaps.Add(1)
					}
					mu.Lock()
					executed = append(executed, id)
					mu.Unlock()
					running.Add(-1)
					return nil
				})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p.UnregisterGracefully()
	awaitDone(t, p)

	require.Zero(t, overlaps.Load())
	require.Equal(t, enqueued, executed)
	require.Equal(t, StatusStopped, p.Status())
}

func TestProcessor_taskMayEnqueueOnItself(t *testing.T) {
	p := newTestProcessor(t, nil)
	done := make(chan struct{})
	var n atomic.Int32
	var step Task
	step = func() error {
		if n.Add(1) == 10 {
			close(done)
			return nil
		}
		p.Add(step)
		return nil
	}
	p.Add(step)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("self enqueue deadlocked")
	}
}

func TestProcessor_backPressureNeverExceedsLimit(t *testing.T) {
	p := newTestProcessor(t, nil)
	const limit = 5

	var maxSeen atomic.Int32
	task := func() error {
		if s := int32(p.Size()); s > maxSeen.Load() {
			maxSeen.Store(s)
		}
		time.Sleep(time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				ok, err := p.AddWithBackPressure(t.Context(), task, limit)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.LessOrEqual(t, p.Size(), limit)
			}
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, maxSeen.Load(), int32(limit))
}

func TestProcessor_backPressureUnblocksOnePerDrain(t *testing.T) {
	p := newTestProcessor(t, nil)
	const (
		limit     = 3
		producers = 4
	)
	gate := make(chan struct{})

	// one running, limit queued
	for i := 0; i <= limit; i++ {
		p.Add(blocker(gate))
	}
	require.Eventually(t, func() bool { return p.Size() == limit }, time.Second, time.Millisecond)

	var admitted atomic.Int32
	for i := 0; i < producers; i++ {
		go func() {
			ok, err := p.AddWithBackPressure(context.Background(), blocker(gate), limit)
			if err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, admitted.Load())
	require.Equal(t, limit, p.Size())

	for i := 1; i <= producers; i++ {
		gate <- struct{}{}
		require.Eventually(t, func() bool { return admitted.Load() == int32(i) }, time.Second, time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, int32(i), admitted.Load())
		require.Equal(t, limit, p.Size())
	}
	close(gate)
}

func TestProcessor_backPressureReleasedOnGracefulShutdown(t *testing.T) {
	p := New(Options{})
	const limit = 10
	gate := make(chan struct{})
	for i := 0; i < limit; i++ {
		p.Add(blocker(gate))
	}

	result := make(chan bool, 1)
	go func() {
		ok, _ := p.AddWithBackPressure(context.Background(), nop, limit)
		result <- ok
	}()
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, result)

	p.Shutdown(false)
	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer was not released")
	}

	// queued tasks still run
	close(gate)
	awaitDone(t, p)
	require.Equal(t, 0, p.Size())
	require.Equal(t, StatusStopped, p.Status())
}

func TestProcessor_backPressureReleasedOnImmediateShutdown(t *testing.T) {
	p := New(Options{})
	const limit = 10
	gate := make(chan struct{})
	defer close(gate)
	for i := 0; i < limit; i++ {
		p.Add(blocker(gate))
	}

	result := make(chan bool, 1)
	go func() {
		ok, _ := p.AddWithBackPressure(context.Background(), nop, limit)
		result <- ok
	}()
	time.Sleep(50 * time.Millisecond)

	p.Shutdown(true)
	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer was not released")
	}
	require.Equal(t, 0, p.Size())
	require.Equal(t, StatusStopped, p.Status())
}

func TestProcessor_backPressureContext(t *testing.T) {
	p := newTestProcessor(t, nil)
	gate := make(chan struct{})
	defer close(gate)
	p.Add(blocker(gate))
	p.Add(blocker(gate))
	require.Eventually(t, func() bool { return p.Size() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	ok, err := p.AddWithBackPressure(ctx, nop, 1)
	require.False(t, ok)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, p.Size())
}

func TestProcessor_invalidThreshold(t *testing.T) {
	p := newTestProcessor(t, nil)
	for _, limit := range []int{0, -1} {
		ok, err := p.AddWithBackPressure(t.Context(), nop, limit)
		require.False(t, ok)
		require.ErrorIs(t, err, ErrInvalidThreshold)
	}
}

func TestProcessor_shutdownNowDiscardsQueue(t *testing.T) {
	p := New(Options{})
	gate := make(chan struct{})
	var ran atomic.Int32
	p.Add(blocker(gate))
	for i := 0; i < 100; i++ {
		p.Add(func() error { ran.Add(1); return nil })
	}

	p.Shutdown(true)
	require.Equal(t, 0, p.Size())

	close(gate)
	awaitDone(t, p)
	require.Zero(t, ran.Load())

	p.Add(nop)
	require.Equal(t, 0, p.Size())
}

func TestProcessor_addAfterGracefulIsDropped(t *testing.T) {
	p := New(Options{})
	p.UnregisterGracefully()
	awaitDone(t, p)

	p.Add(nop)
	require.Equal(t, 0, p.Size())
	ok, err := p.AddWithBackPressure(t.Context(), nop, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProcessor_errorHandlerContinue(t *testing.T) {
	var (
		mu     sync.Mutex
		errs   []error
		boom   = errors.New("boom")
		second = make(chan struct{})
	)
	p := newTestProcessor(t, func(err error) Decision {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		return Continue
	})

	p.Add(func() error { return boom })
	p.Add(func() error { close(second); return nil })

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("task after failure did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], boom)
	require.Equal(t, StatusActive, p.Status())
}

func TestProcessor_errorHandlerAbort(t *testing.T) {
	var calls atomic.Int32
	p := New(Options{ErrorHandler: func(err error) Decision {
		calls.Add(1)
		return Abort
	}})

	gate := make(chan struct{})
	var ran atomic.Bool
	p.Add(func() error {
		<-gate
		panic("intentional")
	})
	p.Add(func() error { ran.Store(true); return nil })

	result := make(chan bool, 1)
	go func() {
		ok, _ := p.AddWithBackPressure(context.Background(), nop, 1)
		result <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate)

	awaitDone(t, p)
	require.False(t, <-result)
	require.False(t, ran.Load())
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, StatusAborted, p.Status())
	require.Equal(t, 0, p.Size())
}

func TestProcessor_panicBecomesPanicError(t *testing.T) {
	got := make(chan error, 1)
	p := newTestProcessor(t, func(err error) Decision {
		got <- err
		return Continue
	})
	p.Add(func() error { panic("kaputt") })

	select {
	case err := <-got:
		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "kaputt", pe.Value)
		require.NotEmpty(t, pe.Stack)
	case <-time.After(time.Second):
		t.Fatal("error handler not called")
	}
}

func TestProcessor_throughputYields(t *testing.T) {
	p := New(Options{
		Pool:       pool.New(pool.Options{MaxWorkers: 1}),
		Throughput: 2,
	})
	var n atomic.Int32
	for i := 0; i < 9; i++ {
		p.Add(func() error { n.Add(1); return nil })
	}
	p.UnregisterGracefully()
	awaitDone(t, p)
	require.Equal(t, int32(9), n.Load())
}
