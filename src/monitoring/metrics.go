package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mintOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_mint_outcomes_total",
			Help: "Mint attempts by outcome",
		},
		[]string{"outcome"},
	)

	mintDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticket_mint_duration_seconds",
			Help:    "Duration of successful mint transactions including chain wait",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	pendingTickets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticket_sync_pending_total",
			Help: "Eligible-but-unminted tickets seen by the last sweep",
		},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_webhook_deliveries_total",
			Help: "Postback webhook deliveries by result",
		},
		[]string{"status"},
	)

	dlqMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticket_sync_dlq_messages_total",
			Help: "Mint jobs moved to the dead letter queue",
		},
	)
)

func ObserveMintOutcome(outcome string) {
	mintOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveMintDuration(d time.Duration) {
	mintDuration.Observe(d.Seconds())
}

func SetPendingTickets(n int) {
	pendingTickets.Set(float64(n))
}

func ObserveWebhookDelivery(status string) {
	webhookDeliveries.WithLabelValues(status).Inc()
}

func ObserveDLQMessage() {
	dlqMessages.Inc()
}
