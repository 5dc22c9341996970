package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/evently/ticketing/internal/database/postgres"
	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/pkg/mailer"
	"github.com/evently/ticketing/pkg/media"
	"github.com/evently/ticketing/pkg/monitoring"
	"github.com/evently/ticketing/pkg/qr"
)

type issuanceService struct {
	ticketRepo    repository.TicketRepository
	attendeeRepo  repository.AttendeeRepository
	eventRepo     repository.EventRepository
	inventoryRepo repository.InventoryRepository
	qrGen         *qr.Generator
	mediaStore    media.Store
	sender        mailer.Sender
	queue         TaskPublisher
}

// NewIssuanceService creates a new instance of IssuanceService
func NewIssuanceService(
	ticketRepo repository.TicketRepository,
	attendeeRepo repository.AttendeeRepository,
	eventRepo repository.EventRepository,
	inventoryRepo repository.InventoryRepository,
	qrGen *qr.Generator,
	mediaStore media.Store,
	sender mailer.Sender,
	queue TaskPublisher,
) IssuanceService {
	return &issuanceService{
		ticketRepo:    ticketRepo,
		attendeeRepo:  attendeeRepo,
		eventRepo:     eventRepo,
		inventoryRepo: inventoryRepo,
		qrGen:         qrGen,
		mediaStore:    mediaStore,
		sender:        sender,
		queue:         queue,
	}
}

// IssueTicket produces the deliverables for one attendee: the ticket row,
// its QR artifact and the confirmation email. The ticket row is the anchor
// and is created even when the QR step fails; the missing pieces are filled
// in by later retries. Calling this twice for the same attendee is safe.
func (s *issuanceService) IssueTicket(ctx context.Context, attendeeID, buyerUserID string) (*entity.Ticket, error) {
	attendee, err := s.attendeeRepo.GetByID(ctx, attendeeID)
	if err != nil {
		return nil, err
	}

	ticketType, err := s.inventoryRepo.GetTicketType(ctx, attendee.TicketTypeID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.ticketRepo.GetByAttendeeID(ctx, attendeeID)
	if err != nil && !errors.Is(err, entity.ErrTicketNotFound) {
		return nil, err
	}

	if ticket == nil {
		ticket = &entity.Ticket{
			ID:              uuid.NewString(),
			EventID:         attendee.EventID,
			BuyerUserID:     buyerUserID,
			AttendeeID:      attendeeID,
			TicketTypeLabel: ticketType.Label,
			Status:          entity.TicketStatusActive,
		}

		if ref, qrErr := s.generateArtifact(ticket); qrErr != nil {
			logrus.Errorf("QR generation failed for attendee %s, issuing without artifact: %v", attendeeID, qrErr)
		} else {
			ticket.QRCodeRef = ref
		}

		if err := s.ticketRepo.Create(ctx, ticket); err != nil {
			if errors.Is(err, entity.ErrTicketAlreadyIssued) {
				// Concurrent issuance won the insert; use its row
				monitoring.TicketsIssued.WithLabelValues("duplicate").Inc()
				return s.ticketRepo.GetByAttendeeID(ctx, attendeeID)
			}
			monitoring.TicketsIssued.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}
		monitoring.TicketsIssued.WithLabelValues("issued").Inc()
	} else if ticket.QRCodeRef == "" {
		if ref, qrErr := s.generateArtifact(ticket); qrErr != nil {
			logrus.Errorf("QR regeneration failed for ticket %s: %v", ticket.ID, qrErr)
		} else {
			ticket.QRCodeRef = ref
			if err := s.ticketRepo.UpdateArtifact(ctx, ticket.ID, ref, ticket.SentToEmail); err != nil {
				return nil, fmt.Errorf("failed to store QR ref: %w", err)
			}
		}
	}

	// The confirmation email carries the QR reference; without the artifact
	// there is nothing worth sending. The recovery sweep retries both.
	if ticket.QRCodeRef != "" && !ticket.SentToEmail {
		s.deliverEmail(ctx, ticket, attendee)
		if !ticket.SentToEmail {
			s.enqueueEmailRetry(ctx, ticket.ID)
		}
	}

	return ticket, nil
}

// generateArtifact renders the QR temp file and moves it into the media
// store. The temp file is removed in all cases.
func (s *issuanceService) generateArtifact(ticket *entity.Ticket) (string, error) {
	payload := &entity.VerificationPayload{
		TicketID:    ticket.ID,
		EventID:     ticket.EventID,
		BuyerUserID: ticket.BuyerUserID,
		AttendeeID:  ticket.AttendeeID,
	}

	tempPath, err := s.qrGen.EncodePayload(payload)
	if err != nil {
		return "", err
	}
	defer os.Remove(tempPath)

	ref, err := s.mediaStore.Store(tempPath, "tickets")
	if err != nil {
		return "", fmt.Errorf("failed to store QR artifact: %w", err)
	}
	return ref, nil
}

// deliverEmail sends the confirmation email and records delivery. Failures
// are swallowed; the recovery sweep retries unsent tickets.
func (s *issuanceService) deliverEmail(ctx context.Context, ticket *entity.Ticket, attendee *entity.Attendee) {
	if s.sender == nil {
		return
	}

	event, err := s.eventRepo.GetByID(ctx, ticket.EventID)
	if err != nil {
		logrus.Errorf("Failed to load event %s for ticket email: %v", ticket.EventID, err)
		return
	}

	body := mailer.TicketEmailBody(
		attendee.Name,
		event.Title,
		event.StartTime.Format(time.RFC1123),
		event.Venue,
		ticket.TicketTypeLabel,
		ticket.QRCodeRef,
	)
	subject := fmt.Sprintf("Your ticket for %s", event.Title)

	if err := s.sender.Send(attendee.Email, subject, body); err != nil {
		monitoring.EmailsSent.WithLabelValues("failed").Inc()
		logrus.Errorf("Failed to send ticket email to %s: %v", attendee.Email, err)
		return
	}

	monitoring.EmailsSent.WithLabelValues("sent").Inc()
	ticket.SentToEmail = true
	if err := s.ticketRepo.UpdateArtifact(ctx, ticket.ID, ticket.QRCodeRef, true); err != nil {
		logrus.Errorf("Failed to record email delivery for ticket %s: %v", ticket.ID, err)
	}
}

// enqueueEmailRetry schedules a send_ticket_email task so SMTP hiccups get a
// faster retry than the recovery sweep. The sweep remains the backstop when
// no queue is configured.
func (s *issuanceService) enqueueEmailRetry(ctx context.Context, ticketID string) {
	if s.queue == nil {
		return
	}

	task := &Task{
		Type: TaskTypeSendTicketEmail,
		Data: map[string]interface{}{"ticket_id": ticketID},
	}
	if err := s.queue.Publish(ctx, task); err != nil {
		logrus.Errorf("Failed to enqueue email retry for ticket %s: %v", ticketID, err)
	}
}

// SendTicketEmail retries just the email step for an already issued ticket
func (s *issuanceService) SendTicketEmail(ctx context.Context, ticketID string) error {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.SentToEmail {
		return nil
	}
	if ticket.QRCodeRef == "" {
		return fmt.Errorf("ticket %s has no QR artifact yet, email deferred", ticketID)
	}

	attendee, err := s.attendeeRepo.GetByID(ctx, ticket.AttendeeID)
	if err != nil {
		return err
	}

	s.deliverEmail(ctx, ticket, attendee)
	if !ticket.SentToEmail {
		return fmt.Errorf("email delivery for ticket %s did not complete", ticketID)
	}
	return nil
}

// RecoverUnfinished finds tickets missing their QR artifact or confirmation
// email and finishes them. Returns the number of tickets processed.
func (s *issuanceService) RecoverUnfinished(ctx context.Context, limit int) (int, error) {
	tickets, err := s.ticketRepo.GetUnfinished(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unfinished tickets: %w", err)
	}

	for _, ticket := range tickets {
		if _, err := s.IssueTicket(ctx, ticket.AttendeeID, ticket.BuyerUserID); err != nil {
			logrus.Errorf("Failed to recover ticket %s: %v", ticket.ID, err)
		}
	}

	return len(tickets), nil
}
