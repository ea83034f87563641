// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_cycles_total",
		Help: "Polling cycles executed.",
	})

	EventsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_events_detected_total",
		Help: "Detected game events by kind.",
	}, []string{"kind"})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_notifications_sent_total",
		Help: "Push notifications delivered successfully.",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_notifications_failed_total",
		Help: "Push notifications that failed delivery.",
	})

	InvalidTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_invalid_tokens_total",
		Help: "Push tokens the gateway reported as permanently invalid.",
	})
)
