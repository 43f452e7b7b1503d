package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/mailroom/core/actor"
)

func TestNewActorMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)

	require.NotNil(t, m)

	timer := m.MessageDuration("counter")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.MessageProcessed("counter", true)
	m.MessageProcessed("counter", false)
	m.ReplyProcessed("counter")
	m.QueueDepth("counter").Set(3)
	m.ActorsRegistered(2)
	m.DelayedScheduled().Inc()
	m.DelayedDropped().Add(2)
	m.PoolInflight().Add(1)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	assert.True(t, names["mailroom_actor_message_duration_seconds"])
	assert.True(t, names["mailroom_actor_messages_total"])
	assert.True(t, names["mailroom_actor_replies_total"])
	assert.True(t, names["mailroom_actor_queue_depth"])
	assert.True(t, names["mailroom_actor_registered"])
	assert.True(t, names["mailroom_actor_delayed_scheduled_total"])
	assert.True(t, names["mailroom_actor_delayed_dropped_total"])
	assert.True(t, names["mailroom_actor_pool_inflight"])
}

func TestNewActorMetrics_doubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewActorMetrics(reg)
	assert.Panics(t, func() { NewActorMetrics(reg) })
}

func TestActorMetrics_withSystem(t *testing.T) {
	reg := prometheus.NewRegistry()
	sys := actor.NewSystem(actor.Options{Context: t.Context(), Metrics: NewActorMetrics(reg)})
	t.Cleanup(sys.ShutDownNow)

	h, err := sys.RegisterActor("echo", actor.Func(func(mc actor.MessageContext, msg any) error {
		return mc.Reply(msg)
	}), actor.DefaultSettings())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := actor.Request[int](t.Context(), h, i)
		require.NoError(t, err)
	}
	require.NoError(t, sys.TellDelayed("echo", 1, time.Millisecond))

	require.Eventually(t, func() bool { return counterValue(t, reg, "mailroom_actor_messages_total") == 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5.0, counterValue(t, reg, "mailroom_actor_replies_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "mailroom_actor_delayed_scheduled_total"))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "mailroom_actor_registered"))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewActorMetrics(reg)
	m.ActorsRegistered(7)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	res, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "mailroom_actor_registered 7")
}

func counterValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			for _, m := range mf.GetMetric() {
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}
