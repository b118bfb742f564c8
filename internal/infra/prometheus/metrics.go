package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded on clicks_dropped_total. Losing a rare click is
// acceptable; losing them silently is not, so every drop site counts.
const (
	DropOverflow  = "buffer_overflow"
	DropPublish   = "publish_failed"
	DropStore     = "store_failed"
	DropMalformed = "malformed_event"
)

var (
	// ClicksRecorded counts click events durably written.
	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "linkboard",
		Name:      "clicks_recorded_total",
		Help:      "Click events durably written to the event log.",
	})

	// ClicksDropped counts click events lost on the analytics path,
	// labelled by the stage that dropped them.
	ClicksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "linkboard",
		Name:      "clicks_dropped_total",
		Help:      "Click events dropped on the analytics path.",
	}, []string{"reason"})

	// GeoLookupFailures counts failed city/country resolutions. These
	// degrade the event, never fail it.
	GeoLookupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "linkboard",
		Name:      "geo_lookup_failures_total",
		Help:      "Failed geo lookups; events fall back to unknown geography.",
	})

	// RedirectDuration observes resolution latency, which must stay
	// independent of analytics-write latency.
	RedirectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "linkboard",
		Name:      "redirect_duration_seconds",
		Help:      "Latency of short-code resolution and redirect.",
		Buckets:   prometheus.DefBuckets,
	})

	// AggregateIncrementFailures counts lost incremental aggregate
	// updates; the periodic reconciler repairs these from raw events.
	AggregateIncrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "linkboard",
		Name:      "aggregate_increment_failures_total",
		Help:      "Failed incremental aggregate updates.",
	})
)
