package service

import (
	"context"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type EventService interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	GetEvent(ctx context.Context, id string) (*entity.Event, error)
	UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*entity.Event, error)
	GetEventAttendees(ctx context.Context, eventID string) ([]*entity.Attendee, error)
}

// BookingService turns a paid intent into attendee rows. Reservation is
// all-or-nothing: either every requested slot is held or none are.
type BookingService interface {
	FulfillBooking(ctx context.Context, intent *entity.BookingIntent) (*entity.BookingResult, error)
}

// PaymentService is the boundary with the external payment provider: it
// opens checkout sessions and consumes the provider's webhook callbacks.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	HandlePaymentConfirmed(ctx context.Context, sessionID string) (*entity.BookingResult, error)
	SweepStaleSessions(ctx context.Context, olderThan time.Duration) error
}

// IssuanceService produces the per-attendee deliverables after a booking is
// fulfilled. Every step is best-effort and retryable; nothing here can undo
// the booking.
type IssuanceService interface {
	IssueTicket(ctx context.Context, attendeeID, buyerUserID string) (*entity.Ticket, error)
	SendTicketEmail(ctx context.Context, ticketID string) error
	RecoverUnfinished(ctx context.Context, limit int) (int, error)
}

type TicketService interface {
	GetBuyerTickets(ctx context.Context, buyerUserID string) ([]*entity.Ticket, error)
	VerifyTicket(ctx context.Context, req *VerifyTicketRequest) (*entity.Ticket, error)
}

type UserService interface {
	RegisterUser(ctx context.Context, req *RegisterUserRequest) (*entity.User, error)
	GetUserByID(ctx context.Context, id string) (*entity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
}

// TaskPublisher decouples services from the queue implementation
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
	PublishBatch(ctx context.Context, tasks []*Task) error
}

// Task mirrors the queue task shape without importing the queue package
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

// Task type constants
const (
	TaskTypeIssueTicket      = "issue_ticket"
	TaskTypeSendTicketEmail  = "send_ticket_email"
	TaskTypeFulfillmentAlert = "fulfillment_alert"
)
