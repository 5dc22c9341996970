package repository

import (
	"context"
	"time"

	"github.com/evently/ticketing/internal/entity"
)

type EventRepository interface {
	// Create persists the event together with its ticket types in one
	// transaction.
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)
	Update(ctx context.Context, event *entity.Event) error

	// Ticket type operations used by the edit-time patch rule
	GetTicketTypes(ctx context.Context, eventID string) ([]*entity.TicketType, error)
	CreateTicketType(ctx context.Context, tt *entity.TicketType) error
	UpdateTicketTypeTerms(ctx context.Context, id string, unitPriceMinor int64, maxQuantity, perBuyerLimit int) error
	DeleteTicketType(ctx context.Context, id string) error
}

// InventoryRepository is the sole writer of sold_count. Reserve and Release
// must be single conditional updates against the store, never a read-then-
// write pair in application code.
type InventoryRepository interface {
	Reserve(ctx context.Context, eventID, ticketTypeID string, quantity int) error
	Release(ctx context.Context, eventID, ticketTypeID string, quantity int) error
	GetTicketType(ctx context.Context, ticketTypeID string) (*entity.TicketType, error)
}

type AttendeeRepository interface {
	CreateBatch(ctx context.Context, attendees []*entity.Attendee) error
	GetByID(ctx context.Context, id string) (*entity.Attendee, error)
	GetByEventID(ctx context.Context, eventID string) ([]*entity.Attendee, error)
	CountByTicketType(ctx context.Context, ticketTypeID string) (int, error)
	UpdateStatus(ctx context.Context, id string, status entity.AttendeeStatus) error
}

type TicketRepository interface {
	Create(ctx context.Context, ticket *entity.Ticket) error
	GetByID(ctx context.Context, id string) (*entity.Ticket, error)
	GetByAttendeeID(ctx context.Context, attendeeID string) (*entity.Ticket, error)
	GetByBuyer(ctx context.Context, buyerUserID string) ([]*entity.Ticket, error)
	UpdateArtifact(ctx context.Context, id, qrCodeRef string, sentToEmail bool) error
	UpdateStatus(ctx context.Context, id string, status entity.TicketStatus) error
	// CheckIn flips active -> checked-in as one conditional update so
	// concurrent scans admit at most once.
	CheckIn(ctx context.Context, id string) error
	CountByBuyerAndType(ctx context.Context, eventID, buyerUserID, ticketTypeID string) (int, error)
	GetUnfinished(ctx context.Context, limit int) ([]*entity.Ticket, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}

// SessionRepository tracks external payment sessions. Claim performs the
// atomic pending -> processing transition that makes webhook retries no-ops.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.PaymentSession) error
	GetByID(ctx context.Context, id string) (*entity.PaymentSession, error)
	GetStalePending(ctx context.Context, before time.Time) ([]*entity.PaymentSession, error)
	Claim(ctx context.Context, id string) error
	// Reopen hands a processing claim back so a later webhook retry can
	// take it again; used when fulfillment dies on infrastructure, not
	// on a domain outcome.
	Reopen(ctx context.Context, id string) error
	MarkFulfilled(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
}
