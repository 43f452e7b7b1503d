// Package metrics declares the small set of instruments the runtime reports
// through. Backends (Prometheus or anything else) implement them in an
// adapter so that the core packages never import a metrics library.
package metrics

// Counter only goes up.
type Counter interface {
	Inc()
	Add(delta float64)
}

// Gauge reports a value that moves in both directions, e.g. a queue depth.
type Gauge interface {
	Set(value float64)
	Add(delta float64)
}

// Timer is started when it is created. ObserveDuration records the time
// elapsed since then, typically via defer:
//
//	defer m.MessageDuration(name).ObserveDuration()
type Timer interface {
	ObserveDuration()
}
