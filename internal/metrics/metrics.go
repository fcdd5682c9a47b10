// Package metrics provides Prometheus metrics for traveler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "traveler"

var (
	// FeedFetchTotal counts feed fetches by outcome.
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Total number of feed fetches",
		},
		[]string{"status"},
	)

	// FeedFetchDuration measures a single feed fetch.
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ItemsSelected counts items that passed selection.
	ItemsSelected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_selected_total",
			Help:      "Total number of feed items selected for a note",
		},
	)

	// NotesCreated counts note creation attempts by origin and outcome.
	NotesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_total",
			Help:      "Total number of note creation attempts",
		},
		[]string{"origin", "status"},
	)

	// WebhookRequests counts ingress requests by server and response code.
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Total number of webhook requests",
		},
		[]string{"server", "code"},
	)

	// GatewayRelays counts relays to the agent gateway by outcome.
	GatewayRelays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_relay_total",
			Help:      "Total number of events relayed to the agent gateway",
		},
		[]string{"status"},
	)
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RecordFetch records one feed fetch.
func RecordFetch(err error, seconds float64) {
	FeedFetchTotal.WithLabelValues(statusOf(err)).Inc()
	FeedFetchDuration.Observe(seconds)
}

// RecordNote records one note creation attempt.
func RecordNote(origin string, err error) {
	NotesCreated.WithLabelValues(origin, statusOf(err)).Inc()
}

// RecordRelay records one gateway relay attempt.
func RecordRelay(err error) {
	GatewayRelays.WithLabelValues(statusOf(err)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
