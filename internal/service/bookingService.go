package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/evently/ticketing/internal/database/postgres"
	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/pkg/monitoring"
)

// typeReservation is the per-tier aggregate of one booking intent
type typeReservation struct {
	ticketType *entity.TicketType
	quantity   int
}

type bookingService struct {
	eventRepo     repository.EventRepository
	inventoryRepo repository.InventoryRepository
	attendeeRepo  repository.AttendeeRepository
}

// NewBookingService creates a new instance of BookingService
func NewBookingService(
	eventRepo repository.EventRepository,
	inventoryRepo repository.InventoryRepository,
	attendeeRepo repository.AttendeeRepository,
) BookingService {
	return &bookingService{
		eventRepo:     eventRepo,
		inventoryRepo: inventoryRepo,
		attendeeRepo:  attendeeRepo,
	}
}

// FulfillBooking reserves inventory for every attendee in the intent and
// creates the attendee rows. Reservations are taken per tier with a single
// conditional update each; if any tier is sold out, every reservation taken
// so far is released in reverse order and the whole booking fails.
func (s *bookingService) FulfillBooking(ctx context.Context, intent *entity.BookingIntent) (*entity.BookingResult, error) {
	if len(intent.AttendeeRequests) == 0 {
		return nil, entity.ErrEmptyBooking
	}

	event, err := s.eventRepo.GetByID(ctx, intent.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", intent.EventID, err)
	}

	// Resolve every request before touching inventory so an invalid slot
	// cannot leave partial holds behind
	reservations, perRequest, err := s.resolveRequests(event, intent.AttendeeRequests)
	if err != nil {
		return nil, err
	}

	reserved := make([]*typeReservation, 0, len(reservations))
	for _, res := range reservations {
		if err := s.inventoryRepo.Reserve(ctx, event.ID, res.ticketType.ID, res.quantity); err != nil {
			monitoring.Reservations.WithLabelValues(reserveOutcome(err)).Inc()
			s.releaseReserved(ctx, event.ID, reserved)
			return nil, err
		}
		monitoring.Reservations.WithLabelValues(monitoring.OutcomeReserved).Inc()
		reserved = append(reserved, res)
	}

	attendees := make([]*entity.Attendee, 0, len(intent.AttendeeRequests))
	for i, req := range intent.AttendeeRequests {
		attendees = append(attendees, &entity.Attendee{
			ID:           uuid.NewString(),
			EventID:      event.ID,
			TicketTypeID: perRequest[i].ID,
			Name:         req.Name,
			Email:        req.Email,
			Status:       entity.AttendeeStatusBooked,
		})
	}

	if err := s.attendeeRepo.CreateBatch(ctx, attendees); err != nil {
		s.releaseReserved(ctx, event.ID, reserved)
		monitoring.BookingsFulfilled.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to create attendees: %w", err)
	}

	monitoring.BookingsFulfilled.WithLabelValues("fulfilled").Inc()
	logrus.Infof("Booking fulfilled for event %s: %d attendees across %d ticket types",
		event.ID, len(attendees), len(reservations))

	return &entity.BookingResult{
		EventID:   event.ID,
		BuyerID:   intent.BuyerUserID,
		Attendees: attendees,
	}, nil
}

// resolveRequests maps each attendee request onto a ticket type and
// aggregates quantities per tier, preserving first-seen order.
func (s *bookingService) resolveRequests(event *entity.Event, requests []entity.AttendeeRequest) ([]*typeReservation, []*entity.TicketType, error) {
	ordered := make([]*typeReservation, 0, len(requests))
	byTypeID := make(map[string]*typeReservation, len(requests))
	perRequest := make([]*entity.TicketType, len(requests))

	for i, req := range requests {
		ref := req.TypeRef()
		if ref == "" {
			return nil, nil, fmt.Errorf("%w: attendee %q has no ticket type", entity.ErrInvalidTicketType, req.Name)
		}
		tt := event.FindTicketType(ref)
		if tt == nil {
			return nil, nil, fmt.Errorf("%w: %q", entity.ErrInvalidTicketType, ref)
		}
		perRequest[i] = tt

		res, ok := byTypeID[tt.ID]
		if !ok {
			res = &typeReservation{ticketType: tt}
			byTypeID[tt.ID] = res
			ordered = append(ordered, res)
		}
		res.quantity++
	}

	return ordered, perRequest, nil
}

// releaseReserved undoes successful reservations in reverse order. Release
// failures are logged but not propagated; the booking already failed.
func (s *bookingService) releaseReserved(ctx context.Context, eventID string, reserved []*typeReservation) {
	for i := len(reserved) - 1; i >= 0; i-- {
		res := reserved[i]
		if err := s.inventoryRepo.Release(ctx, eventID, res.ticketType.ID, res.quantity); err != nil {
			logrus.Errorf("Failed to release %d seats of ticket type %s: %v",
				res.quantity, res.ticketType.ID, err)
			monitoring.Reservations.WithLabelValues(monitoring.OutcomeError).Inc()
			continue
		}
		monitoring.Reservations.WithLabelValues(monitoring.OutcomeReleased).Inc()
	}
}

func reserveOutcome(err error) string {
	if errors.Is(err, entity.ErrTicketTypeSoldOut) {
		return monitoring.OutcomeSoldOut
	}
	return monitoring.OutcomeError
}
