package delay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *recorder) add(v int) func() {
	return func() {
		r.mu.Lock()
		r.seen = append(r.seen, v)
		r.mu.Unlock()
	}
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func TestScheduler_firesInDelayOrder(t *testing.T) {
	s := New(Options{})
	defer s.ShutDown()

	rec := &recorder{}
	for _, ms := range []int{700, 100, 400, 300} {
		require.NoError(t, s.RunLater(rec.add(ms), time.Duration(ms)*time.Millisecond))
	}

	require.Eventually(t, func() bool { return len(rec.values()) == 4 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, []int{100, 300, 400, 700}, rec.values())
	require.Equal(t, 0, s.Pending())
}

func TestScheduler_sameInstantKeepsSubmissionOrder(t *testing.T) {
	at := time.Now()
	s := New(Options{Now: func() time.Time { return at }})
	defer s.ShutDown()

	rec := &recorder{}
	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, s.RunLater(rec.add(i), 0))
	}

	require.Eventually(t, func() bool { return len(rec.values()) == n }, 2*time.Second, 5*time.Millisecond)
	got := rec.values()
	for i := range got {
		require.Equal(t, i, got[i])
	}
}

func TestScheduler_earlierJobPreemptsWait(t *testing.T) {
	s := New(Options{})
	defer s.ShutDown()

	rec := &recorder{}
	require.NoError(t, s.RunLater(rec.add(2), time.Hour))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.RunLater(rec.add(1), 10*time.Millisecond))

	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []int{1}, rec.values())
	require.Equal(t, 1, s.Pending())
}

func TestScheduler_shutDown(t *testing.T) {
	s := New(Options{})
	rec := &recorder{}
	require.NoError(t, s.RunLater(rec.add(1), 50*time.Millisecond))

	s.ShutDown()
	s.ShutDown()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}

	require.ErrorIs(t, s.RunLater(rec.add(2), 0), ErrSchedulerClosed)
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, rec.values())
}

func TestScheduler_panicDoesNotStopLoop(t *testing.T) {
	s := New(Options{})
	defer s.ShutDown()

	rec := &recorder{}
	require.NoError(t, s.RunLater(func() { panic("boom") }, 0))
	require.NoError(t, s.RunLater(rec.add(1), 5*time.Millisecond))
	require.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, 5*time.Millisecond)
}
