package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	repository "github.com/evently/ticketing/internal/database/postgres"
	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/pkg/kafka"
	"github.com/evently/ticketing/pkg/monitoring"
	"github.com/evently/ticketing/pkg/payment"
)

// CheckoutRequest opens a payment session for a batch of attendees. The
// buyer is taken from the authenticated identity; the body field exists for
// unauthenticated callers only and never overrides it.
type CheckoutRequest struct {
	EventID     string                   `json:"event_id" binding:"required"`
	BuyerUserID string                   `json:"buyer_user_id"`
	Attendees   []entity.AttendeeRequest `json:"attendees" binding:"required,min=1,max=50,dive"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// paid statuses reported by the provider on session re-fetch
const (
	providerStatusPaid     = "paid"
	providerStatusComplete = "complete"
)

type paymentService struct {
	sessionRepo repository.SessionRepository
	eventRepo   repository.EventRepository
	ticketRepo  repository.TicketRepository
	userRepo    repository.UserRepository
	provider    payment.Provider
	bookingSvc  BookingService
	queue       TaskPublisher
	producer    kafka.Producer
}

// NewPaymentService creates a new instance of PaymentService
func NewPaymentService(
	sessionRepo repository.SessionRepository,
	eventRepo repository.EventRepository,
	ticketRepo repository.TicketRepository,
	userRepo repository.UserRepository,
	provider payment.Provider,
	bookingSvc BookingService,
	queue TaskPublisher,
	producer kafka.Producer,
) PaymentService {
	return &paymentService{
		sessionRepo: sessionRepo,
		eventRepo:   eventRepo,
		ticketRepo:  ticketRepo,
		userRepo:    userRepo,
		provider:    provider,
		bookingSvc:  bookingSvc,
		queue:       queue,
		producer:    producer,
	}
}

// CreateCheckoutSession validates the booking, prices it and opens a session
// with the provider. The full intent travels inside session metadata so the
// webhook path can fulfill without trusting anything the client sends later.
func (s *paymentService) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status != entity.EventStatusPublished {
		return nil, entity.ErrEventNotPublished
	}
	if time.Now().After(event.EndTime) {
		return nil, entity.ErrEventEnded
	}

	if _, err := s.userRepo.GetByID(ctx, req.BuyerUserID); err != nil {
		return nil, entity.ErrBuyerNotFound
	}

	lineItems, currency, amount, err := s.priceBooking(ctx, event, req)
	if err != nil {
		return nil, err
	}

	intent := &entity.BookingIntent{
		EventID:          event.ID,
		BuyerUserID:      req.BuyerUserID,
		AttendeeRequests: req.Attendees,
	}

	metadata, err := payment.EncodeIntent(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode booking intent: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, lineItems, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	intentJSON, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking intent: %w", err)
	}

	record := &entity.PaymentSession{
		ID:          session.ID,
		EventID:     event.ID,
		BuyerUserID: req.BuyerUserID,
		AmountMinor: amount,
		Currency:    currency,
		Intent:      string(intentJSON),
		Status:      entity.SessionStatusPending,
	}
	if err := s.sessionRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist payment session: %w", err)
	}

	logrus.Infof("Checkout session %s opened for event %s: %d attendees, %d %s",
		session.ID, event.ID, len(req.Attendees), amount, currency)

	return &CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		AmountMinor: amount,
		Currency:    currency,
	}, nil
}

// priceBooking resolves every attendee slot, enforces per-buyer limits and
// returns one line item per tier. Availability is only pre-checked here; the
// authoritative capacity decision happens at fulfillment.
func (s *paymentService) priceBooking(ctx context.Context, event *entity.Event, req *CheckoutRequest) ([]payment.LineItem, string, int64, error) {
	type tierCount struct {
		tt    *entity.TicketType
		count int
	}

	var ordered []*tierCount
	byID := make(map[string]*tierCount)
	for _, a := range req.Attendees {
		ref := a.TypeRef()
		if ref == "" {
			return nil, "", 0, fmt.Errorf("%w: attendee %q has no ticket type", entity.ErrInvalidTicketType, a.Name)
		}
		tt := event.FindTicketType(ref)
		if tt == nil {
			return nil, "", 0, fmt.Errorf("%w: %q", entity.ErrInvalidTicketType, ref)
		}
		tc, ok := byID[tt.ID]
		if !ok {
			tc = &tierCount{tt: tt}
			byID[tt.ID] = tc
			ordered = append(ordered, tc)
		}
		tc.count++
	}

	var (
		items    []payment.LineItem
		currency string
		amount   int64
	)
	for _, tc := range ordered {
		if tc.count > tc.tt.Available() {
			return nil, "", 0, &entity.SoldOutError{Label: tc.tt.Label}
		}
		if tc.tt.PerBuyerLimit > 0 {
			held, err := s.ticketRepo.CountByBuyerAndType(ctx, event.ID, req.BuyerUserID, tc.tt.ID)
			if err != nil {
				return nil, "", 0, fmt.Errorf("failed to count buyer tickets: %w", err)
			}
			if held+tc.count > tc.tt.PerBuyerLimit {
				return nil, "", 0, fmt.Errorf("%w: %q allows %d per buyer",
					entity.ErrPerBuyerLimitExceeded, tc.tt.Label, tc.tt.PerBuyerLimit)
			}
		}
		if currency == "" {
			currency = tc.tt.Currency
		} else if tc.tt.Currency != currency {
			// Events are single-currency by construction; a mixed booking
			// would sum incomparable amounts
			return nil, "", 0, fmt.Errorf("%w: mixed currencies in booking", entity.ErrInvalidInput)
		}
		items = append(items, payment.LineItem{
			Description: fmt.Sprintf("%s - %s", event.Title, tc.tt.Label),
			AmountMinor: tc.tt.UnitPriceMinor,
			Currency:    tc.tt.Currency,
			Quantity:    tc.count,
		})
		amount += tc.tt.UnitPriceMinor * int64(tc.count)
	}

	return items, currency, amount, nil
}

// HandlePaymentConfirmed is the webhook entry point. The session id is the
// only thing taken from the delivery; payment state and the booking intent
// are re-fetched from the provider. Duplicate deliveries lose the claim and
// return ErrSessionProcessed.
func (s *paymentService) HandlePaymentConfirmed(ctx context.Context, sessionID string) (*entity.BookingResult, error) {
	if err := s.sessionRepo.Claim(ctx, sessionID); err != nil {
		if err == entity.ErrSessionProcessed {
			monitoring.DuplicateWebhooks.Inc()
			logrus.Infof("Duplicate webhook for session %s ignored", sessionID)
		}
		return nil, err
	}

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		// A re-fetch failure says nothing about the payment; give the
		// claim back so the provider's retry can drive fulfillment.
		if reopenErr := s.sessionRepo.Reopen(ctx, sessionID); reopenErr != nil {
			logrus.Errorf("Failed to reopen session %s: %v", sessionID, reopenErr)
		}
		return nil, fmt.Errorf("failed to re-fetch session %s: %w", sessionID, err)
	}

	if session.Status != providerStatusPaid && session.Status != providerStatusComplete {
		s.failSession(ctx, sessionID, fmt.Sprintf("session not paid, provider status %q", session.Status))
		return nil, fmt.Errorf("session %s is not paid: status %q", sessionID, session.Status)
	}

	intent, err := payment.DecodeIntent(session.Metadata)
	if err != nil {
		// Provider metadata can be stripped or mangled; the stored row
		// carries the same intent and is authoritative then.
		intent, err = s.storedIntent(ctx, sessionID)
		if err != nil {
			s.failSession(ctx, sessionID, err.Error())
			return nil, err
		}
	}

	result, err := s.bookingSvc.FulfillBooking(ctx, intent)
	if err != nil {
		monitoring.FulfillmentFailures.Inc()
		s.failSession(ctx, sessionID, err.Error())
		return nil, fmt.Errorf("fulfillment failed for session %s: %w", sessionID, err)
	}

	if err := s.sessionRepo.MarkFulfilled(ctx, sessionID); err != nil {
		logrus.Errorf("Failed to mark session %s fulfilled: %v", sessionID, err)
	}

	s.enqueueIssuance(ctx, result)
	return result, nil
}

// enqueueIssuance schedules one issuance task per attendee. Failures here do
// not fail the webhook: the recovery worker will pick up attendees that have
// no ticket yet.
func (s *paymentService) enqueueIssuance(ctx context.Context, result *entity.BookingResult) {
	if s.queue == nil {
		return
	}

	tasks := make([]*Task, 0, len(result.Attendees))
	for _, a := range result.Attendees {
		tasks = append(tasks, &Task{
			Type: TaskTypeIssueTicket,
			Data: map[string]interface{}{
				"attendee_id":   a.ID,
				"buyer_user_id": result.BuyerID,
				"event_id":      result.EventID,
			},
		})
	}

	if err := s.queue.PublishBatch(ctx, tasks); err != nil {
		logrus.Errorf("Failed to enqueue issuance tasks: %v", err)
	}
}

// storedIntent recovers the booking intent from the payment_sessions row.
func (s *paymentService) storedIntent(ctx context.Context, sessionID string) (*entity.BookingIntent, error) {
	record, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var intent entity.BookingIntent
	if err := json.Unmarshal([]byte(record.Intent), &intent); err != nil {
		return nil, fmt.Errorf("%w: stored intent unreadable", entity.ErrInvalidIntent)
	}
	if intent.EventID == "" || intent.BuyerUserID == "" || len(intent.AttendeeRequests) == 0 {
		return nil, entity.ErrInvalidIntent
	}
	return &intent, nil
}

// failSession records the failure and raises an ops alert. The money is
// already captured at this point, so a human has to resolve it. The alert
// travels as a queue task: the worker forwards it to kafka with retries, and
// exhausted deliveries land in the DLQ as the reconciliation record.
func (s *paymentService) failSession(ctx context.Context, sessionID, reason string) {
	if err := s.sessionRepo.MarkFailed(ctx, sessionID, reason); err != nil {
		logrus.Errorf("Failed to mark session %s failed: %v", sessionID, err)
	}

	logrus.WithFields(logrus.Fields{
		"alert":      "payment_without_booking",
		"session_id": sessionID,
	}).Errorf("Payment session failed: %s", reason)

	alert := map[string]interface{}{
		"type":       "fulfillment_failure",
		"session_id": sessionID,
		"reason":     reason,
		"failed_at":  time.Now().UTC().Format(time.RFC3339),
	}

	if s.queue != nil {
		task := &Task{Type: TaskTypeFulfillmentAlert, Data: alert}
		err := s.queue.Publish(ctx, task)
		if err == nil {
			return
		}
		logrus.Errorf("Failed to enqueue fulfillment alert for session %s: %v", sessionID, err)
	}

	if s.producer != nil {
		if err := s.producer.SendMessage(sessionID, alert); err != nil {
			logrus.Errorf("Failed to publish fulfillment alert: %v", err)
		}
	}
}

// SweepStaleSessions fails pending sessions older than the cutoff. These are
// checkouts abandoned before payment; no inventory was ever held for them.
func (s *paymentService) SweepStaleSessions(ctx context.Context, olderThan time.Duration) error {
	stale, err := s.sessionRepo.GetStalePending(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("failed to list stale sessions: %w", err)
	}

	for _, session := range stale {
		if err := s.sessionRepo.MarkFailed(ctx, session.ID, "checkout abandoned"); err != nil {
			logrus.Errorf("Failed to expire session %s: %v", session.ID, err)
			continue
		}
		logrus.Infof("Expired abandoned checkout session %s", session.ID)
	}

	return nil
}
