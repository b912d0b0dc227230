package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total number of confirmed bookings created",
		},
	)
	bookingsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_rejected_total",
			Help: "Total number of booking requests rejected by the ledger",
		},
		[]string{"reason"},
	)
	bookingsCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Total number of cancelled bookings",
		},
		[]string{"refunded"},
	)
	rosterDriftAnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_drift_anomalies_total",
			Help: "Roster decrements that found the counter already at zero",
		},
	)
	instancesMaterializedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "class_instances_materialized_total",
			Help: "Total number of class instances generated from weekly schedules",
		},
	)
)
