package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsConsumed counts messages fetched from each ingress topic,
	// including redeliveries.
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_events_consumed_total",
		Help: "Total number of Kafka messages consumed per topic",
	}, []string{"topic"})

	// EventsDeadLettered counts messages rerouted to a dead-letter topic
	// after retries were exhausted.
	EventsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_events_dead_lettered_total",
		Help: "Total number of Kafka messages rerouted to a dead-letter topic",
	}, []string{"topic"})

	// ReservationOutcomes counts per-item stock mutations by outcome:
	// reserved, insufficient_stock, lock_timeout, restored.
	ReservationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservation_outcomes_total",
		Help: "Total number of stock reservation attempts per outcome",
	}, []string{"outcome"})

	// CacheLookups counts cache reads on the inventory read path by result
	// (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_cache_lookups_total",
		Help: "Total number of inventory cache lookups per result",
	}, []string{"result"})
)
