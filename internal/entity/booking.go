package entity

import (
	"time"
)

type AttendeeStatus string

const (
	AttendeeStatusBooked    AttendeeStatus = "booked"
	AttendeeStatusCheckedIn AttendeeStatus = "checked-in"
	AttendeeStatusCancelled AttendeeStatus = "cancelled"
)

// Attendee is a named recipient of one ticket. Attendees are not login
// identities; the buyer who paid is tracked on the Ticket row.
type Attendee struct {
	ID           string         `json:"id" db:"id"`
	EventID      string         `json:"event_id" db:"event_id"`
	TicketTypeID string         `json:"ticket_type_id" db:"ticket_type_id"`
	Name         string         `json:"name" db:"name"`
	Email        string         `json:"email" db:"email"`
	Status       AttendeeStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// AttendeeRequest is one slot of a booking as submitted at checkout time.
// TicketTypeID is the stable id; TicketType carries the legacy free-text
// label and is only consulted when the id is empty.
type AttendeeRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=255"`
	Email        string `json:"email" binding:"required,email"`
	TicketTypeID string `json:"ticket_type_id"`
	TicketType   string `json:"ticket_type"`
}

func (r *AttendeeRequest) TypeRef() string {
	if r.TicketTypeID != "" {
		return r.TicketTypeID
	}
	return r.TicketType
}

// BookingIntent is what must be fulfilled once payment clears. It is captured
// at checkout, carried opaquely through the payment provider's session
// metadata and never rebuilt from client-supplied post-payment data.
type BookingIntent struct {
	EventID          string            `json:"event_id"`
	BuyerUserID      string            `json:"buyer_user_id"`
	AttendeeRequests []AttendeeRequest `json:"attendee_requests"`
}

// BookingResult is the outcome of a fulfilled booking. Tickets are not part
// of it; issuance runs asynchronously after fulfillment.
type BookingResult struct {
	EventID   string      `json:"event_id"`
	BuyerID   string      `json:"buyer_user_id"`
	Attendees []*Attendee `json:"attendees"`
}
