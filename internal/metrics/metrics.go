// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ticketsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_tickets_created_total",
			Help: "Tickets created, by category.",
		},
		[]string{"category"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_ticket_transitions_total",
			Help: "Applied ticket status transitions.",
		},
		[]string{"from", "to"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_notifications_total",
			Help: "Notification deliveries by kind and result (sent, failed).",
		},
		[]string{"kind", "result"},
	)

	fanoutInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_notification_fanouts_in_flight",
			Help: "Detached notification fan-outs not yet finished.",
		},
	)
)

func init() {
	prometheus.MustRegister(ticketsCreated, transitions, notifications, fanoutInFlight)
}

func TicketCreated(category string) {
	ticketsCreated.WithLabelValues(category).Inc()
}

// Transition records a status change. Calls with from == to are ignored.
func Transition(from, to string) {
	if from == to {
		return
	}
	transitions.WithLabelValues(from, to).Inc()
}

func NotificationSent(kind string) {
	notifications.WithLabelValues(kind, "sent").Inc()
}

func NotificationFailed(kind string) {
	notifications.WithLabelValues(kind, "failed").Inc()
}

func FanoutStarted()  { fanoutInFlight.Inc() }
func FanoutFinished() { fanoutInFlight.Dec() }
