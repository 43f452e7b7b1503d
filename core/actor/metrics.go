package actor

import "github.com/codewandler/mailroom/core/metrics"

// Metrics is implemented by metrics backends. All methods are thread-safe.
type Metrics interface {
	// Message handling, labelled by actor name
	MessageDuration(actor string) metrics.Timer
	MessageProcessed(actor string, success bool)
	ReplyProcessed(actor string)

	// QueueDepth returns the gauge the actor's mailbox reports its length to.
	QueueDepth(actor string) metrics.Gauge

	ActorsRegistered(count int)

	// Delayed delivery
	DelayedScheduled() metrics.Counter
	DelayedDropped() metrics.Counter

	// PoolInflight returns the gauge for running pool jobs.
	PoolInflight() metrics.Gauge
}

type nopMetrics struct{}

func (nopMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) MessageProcessed(string, bool)        {}
func (nopMetrics) ReplyProcessed(string)                {}
func (nopMetrics) QueueDepth(string) metrics.Gauge      { return metrics.NopGauge() }
func (nopMetrics) ActorsRegistered(int)                 {}
func (nopMetrics) DelayedScheduled() metrics.Counter    { return metrics.NopCounter() }
func (nopMetrics) DelayedDropped() metrics.Counter      { return metrics.NopCounter() }
func (nopMetrics) PoolInflight() metrics.Gauge          { return metrics.NopGauge() }

// NopMetrics returns a Metrics implementation that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }
