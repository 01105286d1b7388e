package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetmap_poll_cycles_total",
		Help: "Poll attempts per telemetry class and result",
	}, []string{"class", "result"})
	ReadingsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleetmap_readings_accepted_total",
		Help: "Location readings persisted and broadcast",
	})
	ReadingsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetmap_readings_skipped_total",
		Help: "Location readings dropped before persistence, by reason",
	}, []string{"reason"})
	WebhookReceipts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetmap_webhook_receipts_total",
		Help: "Legacy webhook deliveries by outcome",
	}, []string{"outcome"})
	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetmap_live_subscribers",
		Help: "Currently connected live map subscribers",
	})
)
