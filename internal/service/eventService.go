package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "github.com/evently/ticketing/internal/database/postgres"
	"github.com/evently/ticketing/internal/entity"
)

// TicketTypeInput describes one admission tier of an event. ID is empty on
// create; on update a present ID means "patch this existing tier".
type TicketTypeInput struct {
	ID             string `json:"id"`
	Label          string `json:"label" binding:"required,min=1,max=100"`
	UnitPriceMinor int64  `json:"unit_price_minor" binding:"min=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	MaxQuantity    int    `json:"max_quantity" binding:"required,min=1"`
	PerBuyerLimit  int    `json:"per_buyer_limit" binding:"min=0"`
}

type CreateEventRequest struct {
	Title       string            `json:"title" binding:"required,min=1,max=255"`
	Description string            `json:"description" binding:"max=5000"`
	Venue       string            `json:"venue" binding:"required,min=1,max=255"`
	StartTime   time.Time         `json:"start_time" binding:"required"`
	EndTime     time.Time         `json:"end_time" binding:"required"`
	OrganizerID string            `json:"organizer_id" binding:"required"`
	Status      string            `json:"status"`
	TicketTypes []TicketTypeInput `json:"ticket_types" binding:"required,min=1,dive"`
}

// UpdateEventRequest patches event fields. TicketTypes, when present,
// reconciles the tier list: entries with a known ID update that tier's
// terms, entries without an ID create new tiers, and existing tiers absent
// from the list are removed if nothing references them.
type UpdateEventRequest struct {
	Title       *string           `json:"title,omitempty" binding:"omitempty,min=1,max=255"`
	Description *string           `json:"description,omitempty" binding:"omitempty,max=5000"`
	Venue       *string           `json:"venue,omitempty" binding:"omitempty,min=1,max=255"`
	StartTime   *time.Time        `json:"start_time,omitempty"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
	Status      *string           `json:"status,omitempty"`
	TicketTypes []TicketTypeInput `json:"ticket_types,omitempty" binding:"omitempty,dive"`
}

type eventService struct {
	eventRepo    repository.EventRepository
	attendeeRepo repository.AttendeeRepository
}

// NewEventService creates a new instance of EventService
func NewEventService(eventRepo repository.EventRepository, attendeeRepo repository.AttendeeRepository) EventService {
	return &eventService{
		eventRepo:    eventRepo,
		attendeeRepo: attendeeRepo,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error) {
	if err := validateTicketTypeLabels(req.TicketTypes); err != nil {
		return nil, err
	}
	if _, err := validateTicketTypeCurrency(req.TicketTypes, ""); err != nil {
		return nil, err
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", entity.ErrInvalidInput)
	}

	status := entity.EventStatusDraft
	if req.Status != "" {
		status = entity.EventStatus(req.Status)
		if err := validateEventStatus(status); err != nil {
			return nil, err
		}
	}

	event := &entity.Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Venue:       req.Venue,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		OrganizerID: req.OrganizerID,
		Status:      status,
	}
	for _, in := range req.TicketTypes {
		event.TicketTypes = append(event.TicketTypes, &entity.TicketType{
			ID:             uuid.NewString(),
			EventID:        event.ID,
			Label:          in.Label,
			UnitPriceMinor: in.UnitPriceMinor,
			Currency:       strings.ToUpper(in.Currency),
			MaxQuantity:    in.MaxQuantity,
			PerBuyerLimit:  in.PerBuyerLimit,
		})
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	logrus.Infof("Event %s created with %d ticket types", event.ID, len(event.TicketTypes))
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, id string) (*entity.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *eventService) UpdateEvent(ctx context.Context, id string, req *UpdateEventRequest) (*entity.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Venue != nil {
		event.Venue = *req.Venue
	}
	if req.StartTime != nil {
		event.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		event.EndTime = *req.EndTime
	}
	if !event.EndTime.After(event.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", entity.ErrInvalidInput)
	}
	if req.Status != nil {
		status := entity.EventStatus(*req.Status)
		if err := validateEventStatus(status); err != nil {
			return nil, err
		}
		event.Status = status
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	if req.TicketTypes != nil {
		if err := s.reconcileTicketTypes(ctx, event, req.TicketTypes); err != nil {
			return nil, err
		}
	}

	return s.eventRepo.GetByID(ctx, id)
}

// reconcileTicketTypes applies the tier list from an event update. Existing
// tiers keep their id and sold_count; only price and caps are editable.
func (s *eventService) reconcileTicketTypes(ctx context.Context, event *entity.Event, inputs []TicketTypeInput) error {
	if err := validateTicketTypeLabels(inputs); err != nil {
		return err
	}
	eventCurrency := ""
	if len(event.TicketTypes) > 0 {
		eventCurrency = event.TicketTypes[0].Currency
	}
	if _, err := validateTicketTypeCurrency(inputs, eventCurrency); err != nil {
		return err
	}

	existing := make(map[string]*entity.TicketType, len(event.TicketTypes))
	for _, tt := range event.TicketTypes {
		existing[tt.ID] = tt
	}

	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.ID != "" {
			tt, ok := existing[in.ID]
			if !ok {
				return fmt.Errorf("%w: %s", entity.ErrTicketTypeNotFound, in.ID)
			}
			seen[in.ID] = true
			if in.MaxQuantity < tt.SoldCount {
				return fmt.Errorf("%w: max_quantity %d below sold count %d",
					entity.ErrInvalidQuantity, in.MaxQuantity, tt.SoldCount)
			}
			if err := s.eventRepo.UpdateTicketTypeTerms(ctx, in.ID, in.UnitPriceMinor, in.MaxQuantity, in.PerBuyerLimit); err != nil {
				return fmt.Errorf("failed to update ticket type %s: %w", in.ID, err)
			}
			continue
		}

		tt := &entity.TicketType{
			ID:             uuid.NewString(),
			EventID:        event.ID,
			Label:          in.Label,
			UnitPriceMinor: in.UnitPriceMinor,
			Currency:       strings.ToUpper(in.Currency),
			MaxQuantity:    in.MaxQuantity,
			PerBuyerLimit:  in.PerBuyerLimit,
		}
		if err := s.eventRepo.CreateTicketType(ctx, tt); err != nil {
			return fmt.Errorf("failed to create ticket type %q: %w", in.Label, err)
		}
	}

	// Tiers dropped from the list are deleted unless attendees hold them
	for _, tt := range event.TicketTypes {
		if seen[tt.ID] {
			continue
		}
		count, err := s.attendeeRepo.CountByTicketType(ctx, tt.ID)
		if err != nil {
			return fmt.Errorf("failed to count attendees for ticket type %s: %w", tt.ID, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %q has %d attendees", entity.ErrTicketTypeHasAttendees, tt.Label, count)
		}
		if err := s.eventRepo.DeleteTicketType(ctx, tt.ID); err != nil {
			return fmt.Errorf("failed to delete ticket type %s: %w", tt.ID, err)
		}
	}

	return nil
}

func (s *eventService) GetEventAttendees(ctx context.Context, eventID string) ([]*entity.Attendee, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.attendeeRepo.GetByEventID(ctx, eventID)
}

func validateTicketTypeLabels(inputs []TicketTypeInput) error {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		key := strings.ToLower(strings.TrimSpace(in.Label))
		if key == "" {
			return fmt.Errorf("%w: empty ticket type label", entity.ErrInvalidInput)
		}
		if seen[key] {
			return fmt.Errorf("%w: %q", entity.ErrDuplicateTicketTypeLabel, in.Label)
		}
		seen[key] = true
	}
	return nil
}

// validateTicketTypeCurrency enforces one currency per event. Checkout sums
// line items into a single amount, which only means anything when every tier
// prices in the same currency.
func validateTicketTypeCurrency(inputs []TicketTypeInput, eventCurrency string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(eventCurrency))
	for _, in := range inputs {
		cur := strings.ToUpper(strings.TrimSpace(in.Currency))
		if cur == "" {
			continue
		}
		if currency == "" {
			currency = cur
			continue
		}
		if cur != currency {
			return "", fmt.Errorf("%w: mixed currencies %s and %s", entity.ErrInvalidInput, currency, cur)
		}
	}
	return currency, nil
}

func validateEventStatus(status entity.EventStatus) error {
	switch status {
	case entity.EventStatusDraft, entity.EventStatusPublished, entity.EventStatusCancelled:
		return nil
	default:
		return fmt.Errorf("%w: unknown event status %q", entity.ErrInvalidInput, status)
	}
}
