package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/mailroom/core/actor"
	"github.com/codewandler/mailroom/core/metrics"
)

// actorMetrics implements actor.Metrics using Prometheus.
type actorMetrics struct {
	messageDuration  *prometheus.HistogramVec
	messagesTotal    *prometheus.CounterVec
	repliesTotal     *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	actorsRegistered prometheus.Gauge
	delayedScheduled prometheus.Counter
	delayedDropped   prometheus.Counter
	poolInflight     prometheus.Gauge
}

// NewActorMetrics creates a Prometheus implementation of actor.Metrics and
// registers its collectors with reg.
func NewActorMetrics(reg prometheus.Registerer) actor.Metrics {
	m := &actorMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailroom_actor_message_duration_seconds",
			Help:    "Message handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"actor"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_actor_messages_total",
			Help: "Total number of messages processed",
		}, []string{"actor", "success"}),

		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_actor_replies_total",
			Help: "Total number of reply handlers run",
		}, []string{"actor"}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailroom_actor_queue_depth",
			Help: "Current number of queued messages",
		}, []string{"actor"}),

		actorsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailroom_actor_registered",
			Help: "Number of registered actors",
		}),

		delayedScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_actor_delayed_scheduled_total",
			Help: "Total number of delayed messages scheduled",
		}),

		delayedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_actor_delayed_dropped_total",
			Help: "Delayed messages dropped because the receiver was gone",
		}),

		poolInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailroom_actor_pool_inflight",
			Help: "Number of busy workers",
		}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.repliesTotal,
		m.queueDepth,
		m.actorsRegistered,
		m.delayedScheduled,
		m.delayedDropped,
		m.poolInflight,
	)

	return m
}

func (m *actorMetrics) MessageDuration(name string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(name))
}

func (m *actorMetrics) MessageProcessed(name string, success bool) {
	m.messagesTotal.WithLabelValues(name, boolToStr(success)).Inc()
}

func (m *actorMetrics) ReplyProcessed(name string) {
	m.repliesTotal.WithLabelValues(name).Inc()
}

func (m *actorMetrics) QueueDepth(name string) metrics.Gauge {
	return m.queueDepth.WithLabelValues(name)
}

func (m *actorMetrics) ActorsRegistered(count int) {
	m.actorsRegistered.Set(float64(count))
}

func (m *actorMetrics) DelayedScheduled() metrics.Counter { return m.delayedScheduled }
func (m *actorMetrics) DelayedDropped() metrics.Counter   { return m.delayedDropped }

func (m *actorMetrics) PoolInflight() metrics.Gauge { return m.poolInflight }

var _ actor.Metrics = (*actorMetrics)(nil)
