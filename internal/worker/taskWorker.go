package worker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/evently/ticketing/internal/entity"
	"github.com/evently/ticketing/internal/service"
	"github.com/evently/ticketing/pkg/kafka"
	"github.com/evently/ticketing/pkg/queue"
)

// TaskWorker consumes queue tasks and dispatches them to the services that
// carry them out. It is the only consumer of the Redis queue.
type TaskWorker struct {
	queue       queue.Queue
	issuanceSvc service.IssuanceService
	producer    kafka.Producer
}

// NewTaskWorker creates a new TaskWorker
func NewTaskWorker(q queue.Queue, issuanceSvc service.IssuanceService, producer kafka.Producer) *TaskWorker {
	return &TaskWorker{
		queue:       q,
		issuanceSvc: issuanceSvc,
		producer:    producer,
	}
}

// Start subscribes to the queue. Returns immediately; processing happens on
// the queue's own goroutines until ctx is cancelled.
func (w *TaskWorker) Start(ctx context.Context) error {
	return w.queue.Subscribe(ctx, func(task *queue.Task) error {
		return w.handleTask(ctx, task)
	})
}

func (w *TaskWorker) handleTask(ctx context.Context, task *queue.Task) error {
	logrus.Debugf("Handling task %s of type %s (attempt %d/%d)",
		task.ID, task.Type, task.Attempts, task.MaxRetries)

	switch task.Type {
	case queue.TaskTypeIssueTicket:
		return w.handleIssueTicket(ctx, task)
	case queue.TaskTypeSendTicketEmail:
		return w.handleSendTicketEmail(ctx, task)
	case queue.TaskTypeFulfillmentAlert:
		return w.handleFulfillmentAlert(task)
	default:
		return fmt.Errorf("%w: unknown task type %s", entity.ErrInvalidInput, task.Type)
	}
}

func (w *TaskWorker) handleIssueTicket(ctx context.Context, task *queue.Task) error {
	attendeeID := task.GetString("attendee_id")
	buyerUserID := task.GetString("buyer_user_id")
	if attendeeID == "" || buyerUserID == "" {
		return fmt.Errorf("%w: issue_ticket task %s is missing attendee_id or buyer_user_id",
			entity.ErrInvalidInput, task.ID)
	}

	ticket, err := w.issuanceSvc.IssueTicket(ctx, attendeeID, buyerUserID)
	if err != nil {
		return fmt.Errorf("failed to issue ticket for attendee %s: %w", attendeeID, err)
	}

	logrus.Infof("Issued ticket %s for attendee %s", ticket.ID, attendeeID)
	return nil
}

func (w *TaskWorker) handleSendTicketEmail(ctx context.Context, task *queue.Task) error {
	ticketID := task.GetString("ticket_id")
	if ticketID == "" {
		return fmt.Errorf("%w: send_ticket_email task %s is missing ticket_id",
			entity.ErrInvalidInput, task.ID)
	}
	return w.issuanceSvc.SendTicketEmail(ctx, ticketID)
}

// handleFulfillmentAlert forwards an operational alert to Kafka so the ops
// pipeline picks it up even when it was queued while Kafka was down.
func (w *TaskWorker) handleFulfillmentAlert(task *queue.Task) error {
	if w.producer == nil {
		logrus.Warnf("Dropping fulfillment alert %s: no producer configured", task.ID)
		return nil
	}
	return w.producer.SendMessage(task.GetString("session_id"), task.Data)
}
