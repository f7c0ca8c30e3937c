// Package metrics exposes Prometheus counters for feed and submission activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dhcpdash"

// Recorder counts feed and reservation events
type Recorder struct {
	messages     *prometheus.CounterVec
	disconnects  *prometheus.CounterVec
	lastApplied  *prometheus.GaugeVec
	reservations *prometheus.CounterVec
	registry     *prometheus.Registry
}

// New creates a recorder registered on its own registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      "Feed messages received, by feed and result.",
		}, []string{"feed", "result"}),
		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_disconnects_total",
			Help:      "Feed connection losses, by feed.",
		}, []string{"feed"}),
		lastApplied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_last_applied_timestamp_seconds",
			Help:      "Unix time of the last applied snapshot, by feed.",
		}, []string{"feed"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_requests_total",
			Help:      "Batch reservation submissions, by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(r.messages, r.disconnects, r.lastApplied, r.reservations)
	return r
}

// Registry returns the registry backing the recorder
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Applied counts a snapshot that replaced the view
func (r *Recorder) Applied(feed string, unixSeconds float64) {
	r.messages.WithLabelValues(feed, "applied").Inc()
	r.lastApplied.WithLabelValues(feed).Set(unixSeconds)
}

// Ignored counts a message that left the view untouched
func (r *Recorder) Ignored(feed, reason string) {
	r.messages.WithLabelValues(feed, reason).Inc()
}

// Disconnected counts a lost feed connection
func (r *Recorder) Disconnected(feed string) {
	r.disconnects.WithLabelValues(feed).Inc()
}

// Reservation counts a finished submission
func (r *Recorder) Reservation(result string) {
	r.reservations.WithLabelValues(result).Inc()
}
