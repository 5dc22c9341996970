package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	repository "github.com/evently/ticketing/internal/database/postgres"
	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/pkg/qr"
)

// VerifyTicketRequest carries the raw contents of a scanned QR code plus the
// event the scanner is operating at.
type VerifyTicketRequest struct {
	Payload string `json:"payload" binding:"required"`
	EventID string `json:"event_id" binding:"required"`
}

type ticketService struct {
	ticketRepo   repository.TicketRepository
	attendeeRepo repository.AttendeeRepository
}

// NewTicketService creates a new instance of TicketService
func NewTicketService(ticketRepo repository.TicketRepository, attendeeRepo repository.AttendeeRepository) TicketService {
	return &ticketService{
		ticketRepo:   ticketRepo,
		attendeeRepo: attendeeRepo,
	}
}

func (s *ticketService) GetBuyerTickets(ctx context.Context, buyerUserID string) ([]*entity.Ticket, error) {
	return s.ticketRepo.GetByBuyer(ctx, buyerUserID)
}

// VerifyTicket validates a scanned QR payload against the ticket it names
// and checks the attendee in. A ticket admits exactly once: the second scan
// returns ErrTicketAlreadyRedeemed.
func (s *ticketService) VerifyTicket(ctx context.Context, req *VerifyTicketRequest) (*entity.Ticket, error) {
	payload, err := qr.DecodePayload([]byte(req.Payload))
	if err != nil {
		return nil, err
	}

	if payload.EventID != req.EventID {
		return nil, fmt.Errorf("%w: ticket belongs to another event", entity.ErrVerificationMismatch)
	}

	ticket, err := s.ticketRepo.GetByID(ctx, payload.TicketID)
	if err != nil {
		return nil, err
	}

	if ticket.EventID != payload.EventID ||
		ticket.AttendeeID != payload.AttendeeID ||
		ticket.BuyerUserID != payload.BuyerUserID {
		return nil, entity.ErrVerificationMismatch
	}

	// The conditional update is the only admit decision; a read-then-write
	// pair here would let two concurrent scans both pass.
	if err := s.ticketRepo.CheckIn(ctx, ticket.ID); err != nil {
		return nil, err
	}
	if err := s.attendeeRepo.UpdateStatus(ctx, ticket.AttendeeID, entity.AttendeeStatusCheckedIn); err != nil {
		logrus.Errorf("Failed to update attendee %s status: %v", ticket.AttendeeID, err)
	}

	ticket.Status = entity.TicketStatusCheckedIn
	logrus.Infof("Ticket %s checked in for event %s", ticket.ID, ticket.EventID)
	return ticket, nil
}
