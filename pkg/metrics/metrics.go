// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlacementsCreatedTotal tracks placements created by creation path
	PlacementsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "placement",
			Name:      "created_total",
			Help:      "Total number of placements created",
		},
		[]string{"source"},
	)

	// PlacementAttributedRoles tracks how many attribution roles were filled per placement
	PlacementAttributedRoles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "placement",
			Name:      "attributed_roles",
			Help:      "Number of attribution roles filled on created placements",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	// PlacementTransitionsTotal tracks status transitions by outcome
	PlacementTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "placement",
			Name:      "transitions_total",
			Help:      "Total number of placement status transitions",
		},
		[]string{"from", "to", "outcome"},
	)

	// SourcerClaimsTotal tracks sourcer record creation attempts
	SourcerClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "sourcer",
			Name:      "claims_total",
			Help:      "Total number of sourcer claims by subject kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// EventsPublishedTotal tracks domain events handed to the broker
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of domain events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// KafkaPublishDuration tracks broker write latency
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// AccessResolutionsTotal tracks access context resolution outcomes
	AccessResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "access",
			Name:      "resolutions_total",
			Help:      "Total number of caller access resolutions by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordPlacementCreated records a created placement and how many roles it credits
func RecordPlacementCreated(source string, attributedRoles int) {
	PlacementsCreatedTotal.WithLabelValues(source).Inc()
	PlacementAttributedRoles.Observe(float64(attributedRoles))
}

// RecordTransition records a status transition attempt
func RecordTransition(from, to, outcome string) {
	PlacementTransitionsTotal.WithLabelValues(from, to, outcome).Inc()
}

// RecordSourcerClaim records a sourcer claim attempt
func RecordSourcerClaim(kind, outcome string) {
	SourcerClaimsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordEventPublished records a domain event publish
func RecordEventPublished(eventType, status string) {
	EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
}

// RecordKafkaPublish records broker write latency
func RecordKafkaPublish(durationSeconds float64) {
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordAccessResolution records an access resolution outcome
func RecordAccessResolution(outcome string) {
	AccessResolutionsTotal.WithLabelValues(outcome).Inc()
}
