package entity

import (
	"errors"
	"fmt"
)

var (
	// Event errors
	ErrEventNotFound            = errors.New("event not found")
	ErrEventNotPublished        = errors.New("event is not published")
	ErrEventEnded               = errors.New("event has already ended")
	ErrDuplicateTicketTypeLabel = errors.New("duplicate ticket type label")
	ErrTicketTypeHasAttendees   = errors.New("ticket type has attendees and cannot be removed")

	// Inventory errors
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrInvalidTicketType  = errors.New("invalid ticket type")
	ErrInvalidQuantity    = errors.New("quantity must be positive")

	// Booking errors
	ErrEmptyBooking          = errors.New("booking has no attendees")
	ErrPerBuyerLimitExceeded = errors.New("per-buyer ticket limit exceeded")

	// Ticket errors
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrTicketAlreadyIssued   = errors.New("ticket already issued for attendee")
	ErrVerificationMismatch  = errors.New("verification payload does not match ticket")
	ErrTicketAlreadyRedeemed = errors.New("ticket already checked in")
	ErrTicketCancelled       = errors.New("ticket is cancelled")

	// User errors
	ErrUserNotFound     = errors.New("user not found")
	ErrBuyerNotFound    = errors.New("buyer not found")
	ErrAttendeeNotFound = errors.New("attendee not found")

	// Payment errors
	ErrSessionNotFound  = errors.New("payment session not found")
	ErrSessionProcessed = errors.New("payment session already processed")
	ErrInvalidIntent    = errors.New("payment session metadata is missing or invalid")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden operation")
)

// SoldOutError reports which ticket type ran out so the caller can show an
// actionable message. It unwraps to ErrTicketTypeSoldOut for taxonomy checks.
type SoldOutError struct {
	Label string
}

var ErrTicketTypeSoldOut = errors.New("ticket type sold out")

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("ticket type %q sold out", e.Label)
}

func (e *SoldOutError) Unwrap() error {
	return ErrTicketTypeSoldOut
}

// IsDomainError reports whether err is client-correctable, as opposed to a
// transient infrastructure failure that is safe to retry wholesale.
func IsDomainError(err error) bool {
	for _, domain := range []error{
		ErrEventNotFound,
		ErrEventNotPublished,
		ErrEventEnded,
		ErrDuplicateTicketTypeLabel,
		ErrTicketTypeHasAttendees,
		ErrTicketTypeNotFound,
		ErrInvalidTicketType,
		ErrInvalidQuantity,
		ErrEmptyBooking,
		ErrPerBuyerLimitExceeded,
		ErrTicketTypeSoldOut,
		ErrTicketNotFound,
		ErrVerificationMismatch,
		ErrTicketAlreadyRedeemed,
		ErrTicketCancelled,
		ErrUserNotFound,
		ErrBuyerNotFound,
		ErrAttendeeNotFound,
		ErrInvalidInput,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
