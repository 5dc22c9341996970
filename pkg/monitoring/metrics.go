package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservations_total",
			Help: "Inventory reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	BookingsFulfilled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_fulfilled_total",
			Help: "Booking fulfillment results",
		},
		[]string{"status"},
	)

	DuplicateWebhooks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_webhook_duplicates_total",
			Help: "Webhook deliveries skipped as already processed",
		},
	)

	FulfillmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_fulfillment_failures_total",
			Help: "Bookings that failed after payment was captured",
		},
	)

	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Ticket issuance results",
		},
		[]string{"status"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_emails_total",
			Help: "Confirmation email delivery results",
		},
		[]string{"status"},
	)
)

// Reservation outcomes
const (
	OutcomeReserved = "reserved"
	OutcomeSoldOut  = "sold_out"
	OutcomeReleased = "released"
	OutcomeError    = "error"
)
