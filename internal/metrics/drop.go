package metrics

import "time"

// DropMetrics holds the metrics of one drag session.
type DropMetrics struct {
	registry *Registry

	StatusesReceived *Counter
	RequestsRefused  *Counter
	XErrors          *Counter
	PathsVanished    *Counter

	State *Gauge

	HandshakeDuration *Histogram

	started time.Time
}

// NewDropMetrics registers the session metrics in registry.
func NewDropMetrics(registry *Registry) *DropMetrics {
	if registry == nil {
		registry = NewRegistry("xdrop")
	}
	return &DropMetrics{
		registry: registry,
		StatusesReceived: registry.RegisterCounter(
			"statuses_received_total",
			"XdndStatus messages received from targets",
			nil,
		),
		RequestsRefused: registry.RegisterCounter(
			"selection_requests_refused_total",
			"Selection requests for unsupported targets",
			nil,
		),
		XErrors: registry.RegisterCounter(
			"x_errors_total",
			"Asynchronous X protocol errors",
			nil,
		),
		PathsVanished: registry.RegisterCounter(
			"paths_vanished_total",
			"Offered files removed or renamed during the drag",
			nil,
		),
		State: registry.RegisterGauge(
			"negotiation_state",
			"Current negotiation state",
			nil,
		),
		HandshakeDuration: registry.RegisterHistogram(
			"handshake_duration_seconds",
			"Time from start of tracking to the end of the session",
			nil,
			DurationBuckets,
		),
		started: time.Now(),
	}
}

// Registry returns the backing registry.
func (m *DropMetrics) Registry() *Registry {
	return m.registry
}

// MessageSent counts an outbound protocol message.
func (m *DropMetrics) MessageSent(kind string) {
	m.registry.RegisterCounter(
		"messages_sent_total",
		"XDND client messages sent to targets",
		Labels{"kind": kind},
	).Inc()
}

// Served counts a successful selection conversion.
func (m *DropMetrics) Served(target string, bytes int) {
	m.registry.RegisterCounter(
		"selection_requests_served_total",
		"Selection requests answered with data",
		Labels{"target": target},
	).Inc()
	m.registry.RegisterCounter(
		"selection_bytes_total",
		"Bytes written in selection replies",
		nil,
	).Add(uint64(bytes))
}

// Refused counts a refused selection conversion.
func (m *DropMetrics) Refused() {
	m.RequestsRefused.Inc()
}

// End records the session duration.
func (m *DropMetrics) End() {
	m.HandshakeDuration.ObserveDuration(time.Since(m.started))
}
